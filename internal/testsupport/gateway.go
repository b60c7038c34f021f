package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"redub/internal/api"
)

// FakeGateway is an in-memory translation gateway for tests. Task
// status responses are scripted per task id; the final scripted entry
// repeats for subsequent polls.
type FakeGateway struct {
	t      testing.TB
	server *httptest.Server

	mu        sync.Mutex
	scripts   map[string][]api.TaskStatus
	polls     map[string]int
	failCodes map[string]int
	artifacts map[string][]byte
	settings  api.Settings
}

// NewFakeGateway starts a fake gateway and registers its shutdown.
func NewFakeGateway(t testing.TB) *FakeGateway {
	t.Helper()

	fg := &FakeGateway{
		t:         t,
		scripts:   make(map[string][]api.TaskStatus),
		polls:     make(map[string]int),
		failCodes: make(map[string]int),
		artifacts: make(map[string][]byte),
		settings:  api.Settings{Version: 1, ProcessingMode: "standard"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tasks/{id}/status", fg.handleStatus)
	mux.HandleFunc("POST /v1/tasks/upload", fg.handleUpload)
	mux.HandleFunc("GET /v1/tasks/download/{id}/{file}", fg.handleDownload)
	mux.HandleFunc("GET /v1/settings", fg.handleGetSettings)
	mux.HandleFunc("POST /v1/settings", fg.handleUpdateSettings)

	fg.server = httptest.NewServer(mux)
	t.Cleanup(fg.server.Close)
	return fg
}

// URL returns the fake gateway's base URL.
func (f *FakeGateway) URL() string {
	return f.server.URL
}

// ScriptStatuses sets the poll response sequence for a task id.
func (f *FakeGateway) ScriptStatuses(taskID string, statuses ...api.TaskStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[taskID] = statuses
}

// FailStatus makes status queries for a task id return the given HTTP code.
func (f *FakeGateway) FailStatus(taskID string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCodes[taskID] = code
}

// PollCount reports how many status queries arrived for a task id.
func (f *FakeGateway) PollCount(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[taskID]
}

// SetSettings replaces the settings resource.
func (f *FakeGateway) SetSettings(settings api.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
}

// CurrentSettings returns a copy of the settings resource.
func (f *FakeGateway) CurrentSettings() api.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

// SetArtifact registers a downloadable artifact for a task id.
func (f *FakeGateway) SetArtifact(taskID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[taskID] = data
}

func (f *FakeGateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	f.mu.Lock()
	f.polls[taskID]++
	if code, ok := f.failCodes[taskID]; ok {
		f.mu.Unlock()
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(api.Error{Message: http.StatusText(code)})
		return
	}
	script, ok := f.scripts[taskID]
	if !ok || len(script) == 0 {
		f.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.Error{Code: "NOT_FOUND", Message: "unknown task"})
		return
	}
	index := f.polls[taskID] - 1
	if index >= len(script) {
		index = len(script) - 1
	}
	status := script[index]
	f.mu.Unlock()

	status.TaskID = taskID
	json.NewEncoder(w).Encode(status)
}

func (f *FakeGateway) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.Error{Code: "INVALID_ARGUMENT", Message: err.Error()})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.Error{Code: "INVALID_ARGUMENT", Message: "missing file field"})
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	taskID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	f.mu.Lock()
	if _, ok := f.scripts[taskID]; !ok {
		f.scripts[taskID] = []api.TaskStatus{{Status: api.StatusPending}}
	}
	f.mu.Unlock()

	json.NewEncoder(w).Encode(api.UploadResponse{TaskID: taskID})
}

func (f *FakeGateway) handleDownload(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	f.mu.Lock()
	data, ok := f.artifacts[taskID]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}

func (f *FakeGateway) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	settings := f.settings
	f.mu.Unlock()
	json.NewEncoder(w).Encode(settings)
}

func (f *FakeGateway) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update api.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.Error{Code: "INVALID_ARGUMENT", Message: err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if update.Version != f.settings.Version {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(api.Error{
			Code:           "CONFLICT",
			Message:        "settings version is stale",
			CurrentVersion: f.settings.Version,
		})
		return
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&f.settings.ProcessingMode, update.ProcessingMode)
	applyString(&f.settings.ASRProvider, update.ASRProvider)
	applyString(&f.settings.ASRAPIKey, update.ASRAPIKey)
	applyString(&f.settings.ASREndpoint, update.ASREndpoint)
	applyBool(&f.settings.AudioSeparationEnabled, update.AudioSeparationEnabled)
	applyBool(&f.settings.PolishingEnabled, update.PolishingEnabled)
	applyString(&f.settings.PolishingProvider, update.PolishingProvider)
	applyString(&f.settings.PolishingAPIKey, update.PolishingAPIKey)
	applyString(&f.settings.PolishingEndpoint, update.PolishingEndpoint)
	applyString(&f.settings.TranslationProvider, update.TranslationProvider)
	applyString(&f.settings.TranslationAPIKey, update.TranslationAPIKey)
	applyString(&f.settings.TranslationEndpoint, update.TranslationEndpoint)
	applyString(&f.settings.VoiceCloningProvider, update.VoiceCloningProvider)
	applyString(&f.settings.VoiceCloningAPIKey, update.VoiceCloningAPIKey)
	applyString(&f.settings.VoiceCloningEndpoint, update.VoiceCloningEndpoint)

	f.settings.Version++
	f.settings.IsConfigured = f.settings.RequiredProvidersConfigured()

	json.NewEncoder(w).Encode(api.UpdateSettingsResponse{
		Version: f.settings.Version,
		Message: "settings updated",
	})
}
