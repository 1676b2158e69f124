package domain

import "errors"

// Classified errors surfaced by the translation client and controllers.
// Callers match these with errors.Is; raw transport detail never crosses
// the orchestrator boundary.
var (
	ErrMissingCredential  = errors.New("API credential is not configured")
	ErrUnauthorized       = errors.New("API credential was rejected")
	ErrRateLimited        = errors.New("too many requests")
	ErrServerError        = errors.New("service returned a server error")
	ErrNetworkUnreachable = errors.New("network is unreachable")
	ErrClipTooShort       = errors.New("audio clip is too short")
	ErrClipTooLarge       = errors.New("audio clip is too large")
	ErrNoSpeechDetected   = errors.New("no speech detected in recording")
	ErrPermissionDenied   = errors.New("microphone permission denied")
	ErrDeviceUnavailable  = errors.New("no capture device available")
	ErrEmptyEditContent   = errors.New("edited text is empty")
	ErrBusy               = errors.New("another action is already in flight")
)

// ErrorCode identifies backend errors for the UI layer.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCredential    ErrorCode = "credential"
	ErrorCodeRecording     ErrorCode = "recording"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeTranslation   ErrorCode = "translation"
	ErrorCodePlayback      ErrorCode = "playback"
	ErrorCodeEdit          ErrorCode = "edit"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeBusy          ErrorCode = "busy"
)
