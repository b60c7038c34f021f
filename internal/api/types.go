package api

// Status represents the lifecycle of a gateway task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is one the gateway can report.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskStatus is the gateway's answer to a status query. ResultURL is
// populated only for COMPLETED tasks, ErrorMessage only for FAILED.
type TaskStatus struct {
	TaskID       string `json:"task_id"`
	Status       Status `json:"status"`
	ResultURL    string `json:"result_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// UploadResponse carries the id the gateway assigned to a new task.
type UploadResponse struct {
	TaskID string `json:"task_id"`
}

// Settings mirrors GET /v1/settings. Version is the optimistic-lock
// token; IsConfigured is derived server-side and read-only.
type Settings struct {
	Version      int  `json:"version"`
	IsConfigured bool `json:"is_configured"`

	ProcessingMode string `json:"processing_mode"`

	ASRProvider string `json:"asr_provider"`
	ASRAPIKey   string `json:"asr_api_key"`
	ASREndpoint string `json:"asr_endpoint,omitempty"`

	AudioSeparationEnabled bool `json:"audio_separation_enabled"`

	PolishingEnabled  bool   `json:"polishing_enabled"`
	PolishingProvider string `json:"polishing_provider,omitempty"`
	PolishingAPIKey   string `json:"polishing_api_key,omitempty"`
	PolishingEndpoint string `json:"polishing_endpoint,omitempty"`

	TranslationProvider string `json:"translation_provider"`
	TranslationAPIKey   string `json:"translation_api_key"`
	TranslationEndpoint string `json:"translation_endpoint,omitempty"`

	VoiceCloningProvider string `json:"voice_cloning_provider"`
	VoiceCloningAPIKey   string `json:"voice_cloning_api_key"`
	VoiceCloningEndpoint string `json:"voice_cloning_endpoint,omitempty"`
}

// RequiredProvidersConfigured reports whether every credential pair the
// gateway requires for is_configured is simultaneously non-empty.
func (s Settings) RequiredProvidersConfigured() bool {
	return s.ASRProvider != "" && s.ASRAPIKey != "" &&
		s.TranslationProvider != "" && s.TranslationAPIKey != "" &&
		s.VoiceCloningProvider != "" && s.VoiceCloningAPIKey != ""
}

// SettingsUpdate carries only the fields being changed plus the
// caller's version token. Pointer fields distinguish "leave unchanged"
// from "set to empty".
type SettingsUpdate struct {
	Version int `json:"version"`

	ProcessingMode *string `json:"processing_mode,omitempty"`

	ASRProvider *string `json:"asr_provider,omitempty"`
	ASRAPIKey   *string `json:"asr_api_key,omitempty"`
	ASREndpoint *string `json:"asr_endpoint,omitempty"`

	AudioSeparationEnabled *bool `json:"audio_separation_enabled,omitempty"`

	PolishingEnabled  *bool   `json:"polishing_enabled,omitempty"`
	PolishingProvider *string `json:"polishing_provider,omitempty"`
	PolishingAPIKey   *string `json:"polishing_api_key,omitempty"`
	PolishingEndpoint *string `json:"polishing_endpoint,omitempty"`

	TranslationProvider *string `json:"translation_provider,omitempty"`
	TranslationAPIKey   *string `json:"translation_api_key,omitempty"`
	TranslationEndpoint *string `json:"translation_endpoint,omitempty"`

	VoiceCloningProvider *string `json:"voice_cloning_provider,omitempty"`
	VoiceCloningAPIKey   *string `json:"voice_cloning_api_key,omitempty"`
	VoiceCloningEndpoint *string `json:"voice_cloning_endpoint,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u SettingsUpdate) Empty() bool {
	return u.ProcessingMode == nil &&
		u.ASRProvider == nil && u.ASRAPIKey == nil && u.ASREndpoint == nil &&
		u.AudioSeparationEnabled == nil &&
		u.PolishingEnabled == nil && u.PolishingProvider == nil &&
		u.PolishingAPIKey == nil && u.PolishingEndpoint == nil &&
		u.TranslationProvider == nil && u.TranslationAPIKey == nil && u.TranslationEndpoint == nil &&
		u.VoiceCloningProvider == nil && u.VoiceCloningAPIKey == nil && u.VoiceCloningEndpoint == nil
}

// UpdateSettingsResponse is the gateway's success body for an update.
type UpdateSettingsResponse struct {
	Version int    `json:"version"`
	Message string `json:"message,omitempty"`
}

// Error is the gateway's error body. CurrentVersion is populated only
// on 409 responses so the caller can re-read before retrying.
type Error struct {
	Code           string `json:"code,omitempty"`
	Message        string `json:"message"`
	CurrentVersion int    `json:"current_version,omitempty"`
}
