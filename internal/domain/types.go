package domain

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation log.
//
// ID is assigned at creation and is time-ordered (UUIDv7). Seq is the
// storage row id, zero until the turn has been persisted. Pending turns
// are transient placeholders and are never persisted.
type Turn struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Pending   bool      `json:"pending,omitempty"`
	Editing   bool      `json:"editing,omitempty"`
}

// Settings is the persisted user configuration document.
type Settings struct {
	APIKey    string  `json:"apiKey"`
	Language  string  `json:"language"`
	Voice     string  `json:"voice"`
	Speed     float64 `json:"speed"`
	AutoSpeak bool    `json:"autoSpeak"`
}

// DefaultSettings returns the configuration used on first run.
func DefaultSettings() Settings {
	return Settings{
		Language:  "auto",
		Voice:     "alloy",
		Speed:     1.0,
		AutoSpeak: true,
	}
}

// AudioClip is an encoded audio recording or synthesis result.
type AudioClip struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// PipelineState models one user action moving through the
// recognize/translate sequence.
type PipelineState string

const (
	PipelineIdle        PipelineState = "idle"
	PipelineRecognizing PipelineState = "recognizing"
	PipelineTranslating PipelineState = "translating"
)

// GestureState models the press-and-hold record gesture.
type GestureState string

const (
	GestureIdle       GestureState = "idle"
	GesturePressing   GestureState = "pressing"
	GestureRecording  GestureState = "recording"
	GestureSending    GestureState = "sending"
	GestureCancelling GestureState = "cancelling"
)

// PlaybackState models synthesized speech playback.
type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackLoading PlaybackState = "loading"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackEnded   PlaybackState = "ended"
	PlaybackError   PlaybackState = "error"
)

// PermissionStatus is the cached microphone permission result.
type PermissionStatus string

const (
	PermissionUnknown PermissionStatus = "unknown"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonStartup            StateReason = "startup"
	ReasonPressWaiting       StateReason = "press_waiting"
	ReasonRecordingStarted   StateReason = "recording_started"
	ReasonRecordingSent      StateReason = "recording_sent"
	ReasonRecordingDiscarded StateReason = "recording_discarded"
	ReasonRecordingTooShort  StateReason = "recording_too_short"
	ReasonRecordingCeiling   StateReason = "recording_ceiling"
	ReasonTapTooBrief        StateReason = "tap_too_brief"
	ReasonRecognizing        StateReason = "recognizing"
	ReasonTranslating        StateReason = "translating"
	ReasonTurnComplete       StateReason = "turn_complete"
	ReasonPipelineFailed     StateReason = "pipeline_failed"
	ReasonHistoryCleared     StateReason = "history_cleared"
)

// CredentialCheck reports the result of validating an API credential.
type CredentialCheck struct {
	Valid      bool   `json:"valid"`
	ModelCount int    `json:"modelCount"`
	Message    string `json:"message,omitempty"`
}

// Status summarizes the current backend status for the UI.
type Status struct {
	Pipeline PipelineState `json:"pipeline"`
	Gesture  GestureState  `json:"gesture"`
	Playback PlaybackState `json:"playback"`
	Busy     bool          `json:"busy"`
}
