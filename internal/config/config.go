package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration resolved at startup. User-mutable
// preferences (credential, language, voice) live in the settings store,
// not here.
type Config struct {
	OpenAI   OpenAIConfig
	Audio    AudioConfig
	Gesture  GestureConfig
	Pipeline PipelineConfig
	Playback PlaybackConfig
	Storage  StorageConfig
	Hints    HintsConfig
}

type OpenAIConfig struct {
	APIBaseURL           string
	TranscriptionModel   string
	TranslationModel     string
	SpeechModel          string
	TranscriptionTemp    float64
	TranslationTemp      float64
	TranslationMaxTokens int
	MinClipBytes         int
	MaxClipBytes         int
	RequestTimeout       time.Duration
	RetryAttempts        int
	RetryBase            time.Duration
	SourceLanguage       string
	TargetLanguage       string
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type GestureConfig struct {
	PressDebounce   time.Duration
	CancelThreshold float64
	MinDuration     time.Duration
	MaxDuration     time.Duration
	PermissionTTL   time.Duration
}

type PipelineConfig struct {
	ContextWindow int
	HistoryLimit  int
}

type PlaybackConfig struct {
	StopGrace time.Duration
}

type StorageConfig struct {
	DataDir      string
	DatabaseFile string
	SettingsFile string
}

type HintsConfig struct {
	GlossaryPath string
	MaxLength    int
}

// Load resolves configuration from environment variables and sensible
// defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	dataDir := envOrDefault("TABITALK_DATA_DIR", filepath.Join(home, ".config", "tabitalk"))

	cfg := Config{
		OpenAI: OpenAIConfig{
			APIBaseURL:           envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			TranscriptionModel:   envOrDefault("TABITALK_TRANSCRIPTION_MODEL", "whisper-1"),
			TranslationModel:     envOrDefault("TABITALK_TRANSLATION_MODEL", "gpt-4o-mini"),
			SpeechModel:          envOrDefault("TABITALK_SPEECH_MODEL", "gpt-4o-mini-tts"),
			TranscriptionTemp:    envOrDefaultFloat("TABITALK_TRANSCRIPTION_TEMPERATURE", 0.2),
			TranslationTemp:      envOrDefaultFloat("TABITALK_TRANSLATION_TEMPERATURE", 0.3),
			TranslationMaxTokens: envOrDefaultInt("TABITALK_TRANSLATION_MAX_TOKENS", 200),
			MinClipBytes:         envOrDefaultInt("TABITALK_MIN_CLIP_BYTES", 1000),
			MaxClipBytes:         envOrDefaultInt("TABITALK_MAX_CLIP_BYTES", 25*1024*1024),
			RequestTimeout:       envOrDefaultDuration("TABITALK_REQUEST_TIMEOUT", 60*time.Second),
			RetryAttempts:        envOrDefaultInt("TABITALK_RETRY_ATTEMPTS", 3),
			RetryBase:            envOrDefaultDuration("TABITALK_RETRY_BASE", time.Second),
			SourceLanguage:       envOrDefault("TABITALK_SOURCE_LANGUAGE", "Chinese"),
			TargetLanguage:       envOrDefault("TABITALK_TARGET_LANGUAGE", "Japanese"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("TABITALK_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("TABITALK_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("TABITALK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("TABITALK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("TABITALK_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("TABITALK_CHANNELS", 1),
		},
		Gesture: GestureConfig{
			PressDebounce:   envOrDefaultDuration("TABITALK_PRESS_DEBOUNCE", 50*time.Millisecond),
			CancelThreshold: envOrDefaultFloat("TABITALK_CANCEL_THRESHOLD_PX", 150),
			MinDuration:     envOrDefaultDuration("TABITALK_MIN_RECORDING", 500*time.Millisecond),
			MaxDuration:     envOrDefaultDuration("TABITALK_MAX_RECORDING", 60*time.Second),
			PermissionTTL:   envOrDefaultDuration("TABITALK_PERMISSION_TTL", 2*time.Minute),
		},
		Pipeline: PipelineConfig{
			ContextWindow: envOrDefaultInt("TABITALK_CONTEXT_WINDOW", 10),
			HistoryLimit:  envOrDefaultInt("TABITALK_HISTORY_LIMIT", 50),
		},
		Playback: PlaybackConfig{
			StopGrace: envOrDefaultDuration("TABITALK_PLAYBACK_STOP_GRACE", 1200*time.Millisecond),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			DatabaseFile: envOrDefault("TABITALK_DATABASE_FILE", filepath.Join(dataDir, "conversations.sqlite")),
			SettingsFile: envOrDefault("TABITALK_SETTINGS_FILE", filepath.Join(dataDir, "settings.json")),
		},
		Hints: HintsConfig{
			GlossaryPath: envOrDefault("TABITALK_GLOSSARY_FILE", filepath.Join(dataDir, "glossary.yaml")),
			MaxLength:    envOrDefaultInt("TABITALK_HINT_MAX_LENGTH", 220),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.OpenAI.RetryAttempts <= 0 {
		cfg.OpenAI.RetryAttempts = 3
	}
	if cfg.OpenAI.MinClipBytes < 0 {
		cfg.OpenAI.MinClipBytes = 0
	}
	if cfg.Pipeline.ContextWindow <= 0 {
		cfg.Pipeline.ContextWindow = 10
	}
	if cfg.Pipeline.HistoryLimit <= 0 {
		cfg.Pipeline.HistoryLimit = 50
	}
	if cfg.Gesture.MaxDuration <= cfg.Gesture.MinDuration {
		cfg.Gesture.MaxDuration = 60 * time.Second
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
