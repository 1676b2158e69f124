// Package openai adapts the OpenAI speech-to-text, chat-completion, and
// text-to-speech endpoints behind ports.TranslationService.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tabitalk/internal/domain"
	"tabitalk/internal/ports"
	"tabitalk/internal/retry"
)

// Config controls endpoint addresses, models, and request shaping.
type Config struct {
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
	SourceLanguage       string
	TargetLanguage       string
	Retry                retry.Policy
}

// Client calls the three model endpoints with bounded retry and returns
// classified domain errors. The credential is read per call so settings
// changes take effect without rebuilding the client.
type Client struct {
	cfg         Config
	credentials ports.CredentialSource
	httpClient  *http.Client
}

func NewClient(cfg Config, credentials ports.CredentialSource) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.openai.com/v1"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = "whisper-1"
	}
	if cfg.TranslationModel == "" {
		cfg.TranslationModel = "gpt-4o-mini"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "gpt-4o-mini-tts"
	}
	if cfg.TranslationMaxTokens <= 0 {
		cfg.TranslationMaxTokens = 200
	}
	if cfg.MinClipBytes <= 0 {
		cfg.MinClipBytes = 1000
	}
	if cfg.MaxClipBytes <= 0 {
		cfg.MaxClipBytes = 25 * 1024 * 1024
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = "Chinese"
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "Japanese"
	}

	return &Client{
		cfg:         cfg,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads a clip to the speech-to-text endpoint. Size bounds
// are enforced before any network traffic.
func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip, hint string, language string) (string, error) {
	key, err := c.credential()
	if err != nil {
		return "", err
	}
	if len(clip.Data) < c.cfg.MinClipBytes {
		return "", fmt.Errorf("%w: %d bytes", domain.ErrClipTooShort, len(clip.Data))
	}
	if len(clip.Data) > c.cfg.MaxClipBytes {
		return "", fmt.Errorf("%w: %d bytes", domain.ErrClipTooLarge, len(clip.Data))
	}

	text, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (string, error) {
		return c.transcribeOnce(ctx, key, clip, hint, language)
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrNoSpeechDetected
	}
	return text, nil
}

func (c *Client) transcribeOnce(ctx context.Context, key string, clip domain.AudioClip, hint string, language string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", clipFileName(clip))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("write clip to form: %w", err)
	}
	_ = form.WriteField("model", c.cfg.TranscriptionModel)
	_ = form.WriteField("response_format", "json")
	_ = form.WriteField("temperature", strconv.FormatFloat(c.cfg.TranscriptionTemp, 'f', -1, 64))
	if hint != "" {
		_ = form.WriteField("prompt", hint)
	}
	if language != "" && language != "auto" {
		_ = form.WriteField("language", language)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", form.FormDataContentType())

	var parsed transcriptionResponse
	if err := c.doJSON(req, &parsed); err != nil {
		return "", err
	}
	return parsed.Text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Translate sends a single instruction-following prompt embedding the
// context window and returns the model's first choice, trimmed.
func (c *Client) Translate(ctx context.Context, text string, window []domain.Turn) (string, error) {
	key, err := c.credential()
	if err != nil {
		return "", err
	}

	prompt := buildTranslationPrompt(text, window, c.cfg.SourceLanguage, c.cfg.TargetLanguage)
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.TranslationModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.TranslationTemp,
		MaxTokens:   c.cfg.TranslationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translation request: %w", err)
	}

	return retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build translation request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Content-Type", "application/json")

		var parsed chatResponse
		if err := c.doJSON(req, &parsed); err != nil {
			return "", err
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("%w: empty completion", domain.ErrServerError)
		}
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	})
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize renders text as MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text string, voice string, speed float64) (domain.AudioClip, error) {
	key, err := c.credential()
	if err != nil {
		return domain.AudioClip{}, err
	}
	if voice == "" {
		voice = "alloy"
	}
	if speed <= 0 {
		speed = 1.0
	}

	payload, err := json.Marshal(speechRequest{
		Model:          c.cfg.SpeechModel,
		Input:          text,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return domain.AudioClip{}, fmt.Errorf("marshal speech request: %w", err)
	}

	return retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (domain.AudioClip, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/audio/speech", bytes.NewReader(payload))
		if err != nil {
			return domain.AudioClip{}, fmt.Errorf("build speech request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Content-Type", "application/json")

		data, err := c.doRaw(req)
		if err != nil {
			return domain.AudioClip{}, err
		}
		return domain.AudioClip{Data: data, MIMEType: "audio/mpeg"}, nil
	})
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ValidateCredential confirms the configured credential with the
// list-models endpoint.
func (c *Client) ValidateCredential(ctx context.Context) (domain.CredentialCheck, error) {
	key, err := c.credential()
	if err != nil {
		return domain.CredentialCheck{}, err
	}

	return retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (domain.CredentialCheck, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/models", nil)
		if err != nil {
			return domain.CredentialCheck{}, fmt.Errorf("build models request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+key)

		var parsed modelsResponse
		if err := c.doJSON(req, &parsed); err != nil {
			return domain.CredentialCheck{}, err
		}
		if len(parsed.Data) == 0 {
			return domain.CredentialCheck{Valid: false, Message: "credential accepted but no models available"}, nil
		}
		return domain.CredentialCheck{Valid: true, ModelCount: len(parsed.Data)}, nil
	})
}

func (c *Client) credential() (string, error) {
	key := strings.TrimSpace(c.credentials.Credential())
	if key == "" {
		return "", domain.ErrMissingCredential
	}
	return key, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	data, err := c.doRaw(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrServerError, err)
	}
	return nil
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetworkUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, data)
	}
	return data, nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func classifyStatus(status int, body []byte) error {
	detail := fmt.Sprintf("status %d", status)
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", domain.ErrServerError, detail)
	default:
		return fmt.Errorf("request rejected: %s", detail)
	}
}

func clipFileName(clip domain.AudioClip) string {
	switch {
	case strings.Contains(clip.MIMEType, "mpeg"), strings.Contains(clip.MIMEType, "mp3"):
		return "audio.mp3"
	case strings.Contains(clip.MIMEType, "mp4"):
		return "audio.mp4"
	case strings.Contains(clip.MIMEType, "ogg"):
		return "audio.ogg"
	case strings.Contains(clip.MIMEType, "webm"):
		return "audio.webm"
	default:
		return "audio.wav"
	}
}
