package main

import (
	"errors"
	"testing"

	"tabitalk/internal/domain"
)

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.StateReason]string{
		domain.ReasonStartup:            "Ready",
		domain.ReasonPressWaiting:       "Hold to record",
		domain.ReasonRecordingStarted:   "Recording... slide up to cancel",
		domain.ReasonRecordingSent:      "Recording sent",
		domain.ReasonRecordingDiscarded: "Recording discarded",
		domain.ReasonRecordingTooShort:  "Recording too short, hold longer",
		domain.ReasonRecordingCeiling:   "Recording limit reached, sending",
		domain.ReasonTapTooBrief:        "Hold the button to record",
		domain.ReasonRecognizing:        "Recognizing...",
		domain.ReasonTranslating:        "Translating...",
		domain.ReasonTurnComplete:       "Done",
		domain.ReasonPipelineFailed:     "Translation failed",
		domain.ReasonHistoryCleared:     "History cleared",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := reasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := reasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:       "Startup failed",
		domain.ErrorCodeCredential:    "API key check failed",
		domain.ErrorCodeRecording:     "Microphone unavailable",
		domain.ErrorCodeTranscription: "Speech recognition failed",
		domain.ErrorCodeTranslation:   "Translation failed",
		domain.ErrorCodePlayback:      "Speech playback failed",
		domain.ErrorCodeEdit:          "Edit failed",
		domain.ErrorCodeClipboard:     "Clipboard write failed",
		domain.ErrorCodeBusy:          "Please wait for the current action to finish",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("mystery", "raw detail"); got != "raw detail" {
		t.Fatalf("unknown code should fall back to the detail, got %q", got)
	}
	if got := errorMessage("mystery", ""); got != "Unknown error" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestAppBeforeStartup(t *testing.T) {
	t.Parallel()

	app := NewApp()

	if err := app.PressRecord(0); err == nil {
		t.Fatalf("expected not-initialized error")
	}
	if err := app.SendText("hello"); err == nil {
		t.Fatalf("expected not-initialized error")
	}
	if turns := app.GetTurns(); turns != nil {
		t.Fatalf("expected no turns before startup, got %+v", turns)
	}

	status := app.GetStatus()
	if status.Gesture != domain.GestureIdle || status.Busy {
		t.Fatalf("unexpected pre-startup status: %+v", status)
	}
	if got := app.GetSettings(); got != domain.DefaultSettings() {
		t.Fatalf("expected default settings before startup, got %+v", got)
	}

	// Event sink methods must be safe without a Wails context.
	app.PipelineStateChanged(domain.PipelineIdle, domain.ReasonStartup)
	app.GestureStateChanged(domain.GestureIdle, domain.ReasonStartup)
	app.PlaybackStateChanged(domain.PlaybackIdle)
	app.TurnsChanged(nil)
	app.CancelArmed(false)
	app.AppError(domain.ErrorCodeStartup, "boom")
}

func TestAppSurfacesBootError(t *testing.T) {
	t.Parallel()

	app := NewApp()
	app.bootErr = errors.New("no home directory")

	if err := app.SendText("hello"); err == nil || err.Error() != "no home directory" {
		t.Fatalf("expected boot error, got %v", err)
	}
	info := app.GetRuntimeInfo()
	if info["error"] != "no home directory" {
		t.Fatalf("runtime info should carry the boot error: %+v", info)
	}
}
