package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel markers for the client-side failure taxonomy. Errors are
// tagged with one of these via Wrap and classified with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("version conflict")
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("transport failure")
	ErrServer     = errors.New("server failure")
)

// Wrap builds an error message that includes operation context while
// tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// MarkerForHTTPStatus maps a gateway HTTP status code to the sentinel
// that classifies it. Codes below 400 have no marker and return nil.
func MarkerForHTTPStatus(code int) error {
	switch {
	case code < http.StatusBadRequest:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code >= http.StatusInternalServerError:
		return ErrServer
	default:
		// Remaining 4xx codes (400, 413, 415, ...) all indicate a
		// request the gateway rejected as malformed.
		return ErrValidation
	}
}

// Recoverable reports whether the caller can fix the failure locally
// (re-validate input, or re-read and reapply on conflict).
func Recoverable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "gateway failure"
	}
	return strings.Join(parts, ": ")
}
