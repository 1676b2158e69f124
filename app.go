package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"tabitalk/internal/bootstrap"
	"tabitalk/internal/config"
	"tabitalk/internal/domain"
)

const (
	eventPipeline  = "tabitalk:pipeline"
	eventGesture   = "tabitalk:gesture"
	eventPlayback  = "tabitalk:playback"
	eventTurns     = "tabitalk:turns"
	eventCancelArm = "tabitalk:cancelarm"
	eventError     = "tabitalk:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	cfg      config.Config
	ready    bool
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{}, slog.Default())
	if err != nil {
		a.bootErr = err
		a.AppError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.ready = true

	a.services.Orchestrator.LoadHistory(ctx)
	a.GestureStateChanged(domain.GestureIdle, domain.ReasonStartup)
}

func (a *App) shutdown(ctx context.Context) {
	if a.ready {
		_ = a.services.Close()
	}
}

// PressRecord begins the record gesture at the given pointer position.
func (a *App) PressRecord(y float64) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Recorder.Press(a.ctx, y)
}

// DragRecord tracks the pointer while recording for slide-to-cancel.
func (a *App) DragRecord(y float64) {
	if a.requireReady() != nil {
		return
	}
	a.services.Recorder.Drag(y)
}

// ReleaseRecord ends the gesture; a qualifying recording is sent.
func (a *App) ReleaseRecord() {
	if a.requireReady() != nil {
		return
	}
	a.services.Recorder.Release(a.ctx)
}

// CancelRecording discards an in-progress recording (Escape, pointer
// leaving the window).
func (a *App) CancelRecording() {
	if a.requireReady() != nil {
		return
	}
	a.services.Recorder.Cancel()
}

// SendText translates typed input.
func (a *App) SendText(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.SendText(a.ctx, text)
}

// BeginEdit opens the most recent user turn for editing.
func (a *App) BeginEdit() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.BeginEdit()
}

// ConfirmEdit applies edited text and re-translates.
func (a *App) ConfirmEdit(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.ConfirmEdit(a.ctx, text)
}

// CancelEdit abandons the edit and restores the original text.
func (a *App) CancelEdit() {
	if a.requireReady() != nil {
		return
	}
	a.services.Orchestrator.CancelEdit()
}

// PlayTurn speaks a translation on demand.
func (a *App) PlayTurn(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.PlayTurn(a.ctx, id)
}

// StopPlayback halts speech playback.
func (a *App) StopPlayback() {
	if a.requireReady() != nil {
		return
	}
	a.services.Speech.Stop()
}

// GetTurns returns the current conversation.
func (a *App) GetTurns() []domain.Turn {
	if a.requireReady() != nil {
		return nil
	}
	return a.services.Orchestrator.Turns()
}

// GetStatus returns the combined backend status.
func (a *App) GetStatus() domain.Status {
	if a.requireReady() != nil {
		return domain.Status{
			Pipeline: domain.PipelineIdle,
			Gesture:  domain.GestureIdle,
			Playback: domain.PlaybackIdle,
		}
	}
	status := domain.Status{
		Pipeline: domain.PipelineIdle,
		Gesture:  a.services.Recorder.State(),
		Playback: domain.PlaybackIdle,
		Busy:     a.services.Orchestrator.Busy(),
	}
	if status.Busy {
		status.Pipeline = domain.PipelineTranslating
	}
	return status
}

// GetSettings returns the persisted user settings.
func (a *App) GetSettings() domain.Settings {
	if a.requireReady() != nil {
		return domain.DefaultSettings()
	}
	return a.services.Settings.Get()
}

// UpdateSettings stores changed user settings. Writes are coalesced;
// the credential takes effect on the next request.
func (a *App) UpdateSettings(settings domain.Settings) {
	if a.requireReady() != nil {
		return
	}
	a.services.Settings.Set(settings)
}

// ValidateCredential checks the configured API credential against the
// remote service.
func (a *App) ValidateCredential() (domain.CredentialCheck, error) {
	if err := a.requireReady(); err != nil {
		return domain.CredentialCheck{}, err
	}
	a.services.Settings.Flush()
	check, err := a.services.Translator.ValidateCredential(a.ctx)
	if err != nil {
		a.AppError(domain.ErrorCodeCredential, err.Error())
		return domain.CredentialCheck{}, err
	}
	return check, nil
}

// ClearAllData wipes the conversation history.
func (a *App) ClearAllData() {
	if a.requireReady() != nil {
		return
	}
	a.services.Orchestrator.ClearAll(a.ctx)
}

// CopyLastTranslation puts the newest translation on the clipboard.
func (a *App) CopyLastTranslation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.CopyLastTranslation(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":           "OpenAI",
		"transcriptionModel": a.cfg.OpenAI.TranscriptionModel,
		"translationModel":   a.cfg.OpenAI.TranslationModel,
		"speechModel":        a.cfg.OpenAI.SpeechModel,
		"languagePair":       a.cfg.OpenAI.SourceLanguage + "/" + a.cfg.OpenAI.TargetLanguage,
		"audioInput":         a.cfg.Audio.InputDevice,
		"audioInputFormat":   a.cfg.Audio.InputFormat,
		"dataDir":            a.cfg.Storage.DataDir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// PipelineStateChanged emits recognize/translate progress to the frontend.
func (a *App) PipelineStateChanged(state domain.PipelineState, reason domain.StateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPipeline, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

// GestureStateChanged emits record gesture updates.
func (a *App) GestureStateChanged(state domain.GestureState, reason domain.StateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventGesture, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

// PlaybackStateChanged emits speech playback updates.
func (a *App) PlaybackStateChanged(state domain.PlaybackState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPlayback, map[string]string{
		"state": string(state),
	})
}

// TurnsChanged pushes the full conversation to the frontend.
func (a *App) TurnsChanged(turns []domain.Turn) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurns, turns)
}

// CancelArmed signals the slide-to-cancel affordance.
func (a *App) CancelArmed(armed bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCancelArm, map[string]bool{"armed": armed})
}

// AppError emits backend errors to the UI.
func (a *App) AppError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func reasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonStartup:
		return "Ready"
	case domain.ReasonPressWaiting:
		return "Hold to record"
	case domain.ReasonRecordingStarted:
		return "Recording... slide up to cancel"
	case domain.ReasonRecordingSent:
		return "Recording sent"
	case domain.ReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.ReasonRecordingTooShort:
		return "Recording too short, hold longer"
	case domain.ReasonRecordingCeiling:
		return "Recording limit reached, sending"
	case domain.ReasonTapTooBrief:
		return "Hold the button to record"
	case domain.ReasonRecognizing:
		return "Recognizing..."
	case domain.ReasonTranslating:
		return "Translating..."
	case domain.ReasonTurnComplete:
		return "Done"
	case domain.ReasonPipelineFailed:
		return "Translation failed"
	case domain.ReasonHistoryCleared:
		return "History cleared"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCredential:
		return "API key check failed"
	case domain.ErrorCodeRecording:
		return "Microphone unavailable"
	case domain.ErrorCodeTranscription:
		return "Speech recognition failed"
	case domain.ErrorCodeTranslation:
		return "Translation failed"
	case domain.ErrorCodePlayback:
		return "Speech playback failed"
	case domain.ErrorCodeEdit:
		return "Edit failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeBusy:
		return "Please wait for the current action to finish"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
