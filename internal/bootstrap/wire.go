package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"tabitalk/internal/audio"
	"tabitalk/internal/config"
	"tabitalk/internal/conversation"
	"tabitalk/internal/hints"
	"tabitalk/internal/playback"
	"tabitalk/internal/ports"
	"tabitalk/internal/providers/openai"
	"tabitalk/internal/recording"
	"tabitalk/internal/retry"
	"tabitalk/internal/settings"
	"tabitalk/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Orchestrator *usecase.Orchestrator
	Recorder     *recording.Controller
	Speech       *playback.Controller
	Settings     *settings.Store
	Translator   *openai.Client
	Store        *conversation.Store
	Config       config.Config
}

// Close releases resources held by the graph.
func (s Services) Close() error {
	s.Speech.Stop()
	s.Settings.Flush()
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard, logger *slog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return Services{}, fmt.Errorf("create data directory: %w", err)
	}

	settingsStore := settings.NewStore(cfg.Storage.SettingsFile, logger)

	store, err := conversation.Open(cfg.Storage.DatabaseFile)
	if err != nil {
		return Services{}, fmt.Errorf("open conversation store: %w", err)
	}

	hintStrategy, err := hints.NewStrategy(cfg.Hints.GlossaryPath, cfg.Hints.MaxLength)
	if err != nil {
		_ = store.Close()
		return Services{}, fmt.Errorf("load glossary: %w", err)
	}

	translator := openai.NewClient(openai.Config{
		APIBaseURL:           cfg.OpenAI.APIBaseURL,
		TranscriptionModel:   cfg.OpenAI.TranscriptionModel,
		TranslationModel:     cfg.OpenAI.TranslationModel,
		SpeechModel:          cfg.OpenAI.SpeechModel,
		TranscriptionTemp:    cfg.OpenAI.TranscriptionTemp,
		TranslationTemp:      cfg.OpenAI.TranslationTemp,
		TranslationMaxTokens: cfg.OpenAI.TranslationMaxTokens,
		MinClipBytes:         cfg.OpenAI.MinClipBytes,
		MaxClipBytes:         cfg.OpenAI.MaxClipBytes,
		RequestTimeout:       cfg.OpenAI.RequestTimeout,
		SourceLanguage:       cfg.OpenAI.SourceLanguage,
		TargetLanguage:       cfg.OpenAI.TargetLanguage,
		Retry: retry.Policy{
			Attempts: cfg.OpenAI.RetryAttempts,
			Base:     cfg.OpenAI.RetryBase,
		},
	}, settingsStore)

	speech := playback.NewController(
		translator,
		playback.NewFFPlayPlayer(cfg.Audio.PlayerCommand, cfg.Playback.StopGrace),
		eventSink,
	)

	orchestrator := usecase.NewOrchestrator(
		translator,
		store,
		settingsStore,
		hintStrategy,
		speech,
		clipboard,
		eventSink,
		logger,
		usecase.Config{
			ContextWindow: cfg.Pipeline.ContextWindow,
			HistoryLimit:  cfg.Pipeline.HistoryLimit,
		},
	)

	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	recorder := recording.NewController(
		capture,
		capture,
		orchestrator,
		eventSink,
		recording.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			PressDebounce:   cfg.Gesture.PressDebounce,
			CancelThreshold: cfg.Gesture.CancelThreshold,
			MinDuration:     cfg.Gesture.MinDuration,
			MaxDuration:     cfg.Gesture.MaxDuration,
			PermissionTTL:   cfg.Gesture.PermissionTTL,
		},
	)

	return Services{
		Orchestrator: orchestrator,
		Recorder:     recorder,
		Speech:       speech,
		Settings:     settingsStore,
		Translator:   translator,
		Store:        store,
		Config:       cfg,
	}, nil
}
