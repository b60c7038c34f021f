package api_test

import (
	"errors"
	"fmt"
	"testing"

	"redub/internal/api"
)

func TestMarkerForHTTPStatus(t *testing.T) {
	cases := []struct {
		code   int
		marker error
	}{
		{200, nil},
		{204, nil},
		{400, api.ErrValidation},
		{404, api.ErrNotFound},
		{409, api.ErrConflict},
		{413, api.ErrValidation},
		{415, api.ErrValidation},
		{500, api.ErrServer},
		{503, api.ErrServer},
		{507, api.ErrServer},
	}
	for _, tc := range cases {
		got := api.MarkerForHTTPStatus(tc.code)
		if tc.marker == nil {
			if got != nil {
				t.Fatalf("status %d: expected no marker, got %v", tc.code, got)
			}
			continue
		}
		if !errors.Is(got, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.code, tc.marker, got)
		}
	}
}

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := api.Wrap(api.ErrTransport, "task status", "request failed", cause)
	if !errors.Is(err, api.ErrTransport) {
		t.Fatalf("expected transport marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := api.Wrap(nil, "upload", "", nil)
	if !errors.Is(err, api.ErrTransport) {
		t.Fatalf("expected default transport marker, got %v", err)
	}
}

func TestRecoverable(t *testing.T) {
	if !api.Recoverable(api.Wrap(api.ErrConflict, "settings update", "stale version", nil)) {
		t.Fatal("conflict should be recoverable")
	}
	if !api.Recoverable(api.Wrap(api.ErrValidation, "upload", "bad extension", nil)) {
		t.Fatal("validation should be recoverable")
	}
	if api.Recoverable(api.Wrap(api.ErrServer, "task status", "", nil)) {
		t.Fatal("server failure should not be recoverable")
	}
}

func TestStatusPredicates(t *testing.T) {
	if !api.StatusCompleted.Terminal() || !api.StatusFailed.Terminal() {
		t.Fatal("completed and failed must be terminal")
	}
	if api.StatusPending.Terminal() || api.StatusProcessing.Terminal() {
		t.Fatal("pending and processing must not be terminal")
	}
	if !api.StatusPending.Valid() || api.Status("RUNNING").Valid() {
		t.Fatal("status validity check broken")
	}
}
