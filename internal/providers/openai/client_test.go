package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tabitalk/internal/domain"
	"tabitalk/internal/retry"
)

type staticCredential string

func (c staticCredential) Credential() string { return string(c) }

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, Base: time.Millisecond}
}

func testClip(size int) domain.AudioClip {
	return domain.AudioClip{Data: make([]byte, size), MIMEType: "audio/wav"}
}

func newTestClient(serverURL string, key string) *Client {
	return NewClient(Config{
		APIBaseURL:   serverURL,
		MinClipBytes: 1000,
		MaxClipBytes: 4000,
		Retry:        fastRetry(),
	}, staticCredential(key))
}

func TestTranscribeSendsMultipartAndReturnsText(t *testing.T) {
	t.Parallel()

	var gotModel, gotPrompt, gotLanguage, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotPrompt = r.FormValue("prompt")
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		json.NewEncoder(w).Encode(map[string]string{"text": " こんにちは "})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	text, err := client.Transcribe(context.Background(), testClip(2000), "新宿駅", "zh")
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "こんにちは" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("unexpected model: %q", gotModel)
	}
	if gotPrompt != "新宿駅" {
		t.Fatalf("unexpected prompt: %q", gotPrompt)
	}
	if gotLanguage != "zh" {
		t.Fatalf("unexpected language: %q", gotLanguage)
	}
	if gotFile != "audio.wav" {
		t.Fatalf("unexpected file name: %q", gotFile)
	}
}

func TestTranscribeClipBoundsSkipNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")

	if _, err := client.Transcribe(context.Background(), testClip(10), "", ""); !errors.Is(err, domain.ErrClipTooShort) {
		t.Fatalf("expected clip too short, got %v", err)
	}
	if _, err := client.Transcribe(context.Background(), testClip(5000), "", ""); !errors.Is(err, domain.ErrClipTooLarge) {
		t.Fatalf("expected clip too large, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestTranscribeBlankResultIsNoSpeech(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	_, err := client.Transcribe(context.Background(), testClip(2000), "", "")
	if !errors.Is(err, domain.ErrNoSpeechDetected) {
		t.Fatalf("expected no speech detected, got %v", err)
	}
}

func TestMissingCredentialFailsWithoutNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "   ")
	if _, err := client.Transcribe(context.Background(), testClip(2000), "", ""); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if _, err := client.Translate(context.Background(), "hi", nil); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if _, err := client.Synthesize(context.Background(), "hi", "alloy", 1.0); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestTranslateEmbedsContextOldestFirst(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 200 {
			t.Errorf("unexpected request shape: %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		gotPrompt = req.Messages[0].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "  Hello  "}}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	window := []domain.Turn{
		{Role: domain.RoleUser, Text: "早上好"},
		{Role: domain.RoleAssistant, Text: "おはようございます"},
	}
	out, err := client.Translate(context.Background(), "こんにちは", window)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("unexpected translation: %q", out)
	}

	userIdx := strings.Index(gotPrompt, "User: 早上好")
	assistantIdx := strings.Index(gotPrompt, "Translation: おはようございます")
	if userIdx < 0 || assistantIdx < 0 || userIdx > assistantIdx {
		t.Fatalf("context not embedded oldest first:\n%s", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "Current input: こんにちは") {
		t.Fatalf("prompt missing current input:\n%s", gotPrompt)
	}
}

func TestSynthesizeReturnsAudioBytes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Voice != "nova" || req.Speed != 1.25 || req.ResponseFormat != "mp3" {
			t.Errorf("unexpected speech request: %+v", req)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	clip, err := client.Synthesize(context.Background(), "Hello", "nova", 1.25)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(clip.Data) != "mp3-bytes" {
		t.Fatalf("unexpected audio: %q", clip.Data)
	}
	if clip.MIMEType != "audio/mpeg" {
		t.Fatalf("unexpected mime type: %q", clip.MIMEType)
	}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	out, err := client.Translate(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if out != "ok" || calls.Load() != 3 {
		t.Fatalf("expected success on attempt 3, got out=%q calls=%d", out, calls.Load())
	}
}

func TestRetryExhaustionSurfacesClassifiedError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"backend exploded"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	_, err := client.Translate(context.Background(), "hi", nil)
	if !errors.Is(err, domain.ErrServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls.Load())
	}
}

func TestStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.ErrServerError},
	}
	for _, tc := range cases {
		if got := classifyStatus(tc.status, nil); !errors.Is(got, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, got)
		}
	}
	if got := classifyStatus(http.StatusBadRequest, []byte(`{"error":{"message":"bad input"}}`)); !strings.Contains(got.Error(), "bad input") {
		t.Fatalf("expected endpoint message in error, got %v", got)
	}
}

func TestNetworkFailureIsClassified(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{
		APIBaseURL: "http://127.0.0.1:1",
		Retry:      retry.Policy{Attempts: 2, Base: time.Millisecond},
	}, staticCredential("sk-test"))

	_, err := client.Translate(context.Background(), "hi", nil)
	if !errors.Is(err, domain.ErrNetworkUnreachable) {
		t.Fatalf("expected network unreachable, got %v", err)
	}
}

func TestValidateCredential(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "whisper-1"}, {"id": "gpt-4o-mini"}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	check, err := client.ValidateCredential(context.Background())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !check.Valid || check.ModelCount != 2 {
		t.Fatalf("unexpected check result: %+v", check)
	}
}

func TestValidateCredentialRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-bad")
	_, err := client.ValidateCredential(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateCredentialEmptyModelList(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "sk-test")
	check, err := client.ValidateCredential(context.Background())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if check.Valid {
		t.Fatalf("expected invalid check for empty model list")
	}
}
