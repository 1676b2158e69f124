package ports

import (
	"context"
	"io"

	"tabitalk/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing raw PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PermissionProber checks microphone access without keeping a stream open.
// It fails with domain.ErrPermissionDenied or domain.ErrDeviceUnavailable.
type PermissionProber interface {
	Probe(ctx context.Context, cfg AudioConfig) error
}

// TranslationService wraps the three remote model endpoints plus
// credential validation. Implementations retry transient failures
// internally and return classified domain errors once retries are
// exhausted.
type TranslationService interface {
	// Transcribe converts a recorded clip to text. hint biases
	// recognition toward recent vocabulary; language may be empty
	// for auto-detection.
	Transcribe(ctx context.Context, clip domain.AudioClip, hint string, language string) (string, error)

	// Translate converts text using a bounded window of prior turns
	// as conversational context, oldest first.
	Translate(ctx context.Context, text string, window []domain.Turn) (string, error)

	// Synthesize renders text as encoded speech audio.
	Synthesize(ctx context.Context, text string, voice string, speed float64) (domain.AudioClip, error)

	// ValidateCredential confirms the configured credential is
	// accepted by the remote service.
	ValidateCredential(ctx context.Context) (domain.CredentialCheck, error)
}

// ConversationStore persists the ordered turn log.
type ConversationStore interface {
	// Append stores a turn and returns its assigned row id.
	Append(ctx context.Context, turn domain.Turn) (int64, error)

	// Recent returns the most recent limit turns in chronological order.
	Recent(ctx context.Context, limit int) ([]domain.Turn, error)

	// UpdateText rewrites the text of a stored turn (edit flow).
	UpdateText(ctx context.Context, seq int64, text string) error

	// Delete removes a stored turn (discarded translation after an edit).
	Delete(ctx context.Context, seq int64) error

	// Clear removes all stored turns.
	Clear(ctx context.Context) error

	Close() error
}

// SettingsStore persists the user settings document.
type SettingsStore interface {
	Get() domain.Settings
	Set(settings domain.Settings)
	// Flush forces any coalesced write to disk.
	Flush()
	Reset()
}

// CredentialSource exposes the current API credential.
type CredentialSource interface {
	Credential() string
}

// Playback is one active speech playback.
type Playback interface {
	// Done is closed when playback finishes; it yields a non-nil
	// error if playback failed.
	Done() <-chan error
	Stop() error
}

// SpeechPlayer starts audio playback of a synthesized clip.
type SpeechPlayer interface {
	Start(ctx context.Context, clip domain.AudioClip) (Playback, error)
}

// Synthesizer is the narrow text-to-speech surface the playback
// controller needs. TranslationService satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice string, speed float64) (domain.AudioClip, error)
}

// SpeechOutput is the playback controller surface the orchestrator uses.
type SpeechOutput interface {
	// Speak synthesizes text and plays it, stopping any playback
	// already in progress.
	Speak(ctx context.Context, text string, voice string, speed float64) error
	Stop()
}

// ClipHandler receives finalized recordings from the recording controller.
type ClipHandler interface {
	HandleClip(ctx context.Context, clip domain.AudioClip)
}

// HintStrategy assembles a transcription bias hint from recent turns.
type HintStrategy interface {
	Hint(recent []domain.Turn) string
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state and data changes to the UI.
type EventSink interface {
	PipelineStateChanged(state domain.PipelineState, reason domain.StateReason)
	GestureStateChanged(state domain.GestureState, reason domain.StateReason)
	PlaybackStateChanged(state domain.PlaybackState)
	TurnsChanged(turns []domain.Turn)
	CancelArmed(armed bool)
	AppError(code domain.ErrorCode, detail string)
}
