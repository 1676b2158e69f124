// Package settings persists the user settings document as a single JSON
// file. Reads are served from memory; writes are coalesced and flushed
// atomically. Storage failures are logged and swallowed so the
// conversation flow never blocks on a bad disk.
package settings

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"tabitalk/internal/domain"
)

const flushDelay = 300 * time.Millisecond

// Store holds the settings document for the application lifetime.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	current  domain.Settings
	schedule func(func())
}

// NewStore loads the settings file, falling back to defaults when the
// file is missing or unreadable.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:     path,
		logger:   logger,
		current:  domain.DefaultSettings(),
		schedule: debounce.New(flushDelay),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("settings read failed, using defaults", "path", path, "error", err)
		}
		return s
	}

	loaded := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		logger.Warn("settings file is corrupt, using defaults", "path", path, "error", err)
		return s
	}
	s.current = normalize(loaded)
	return s
}

// Get returns the current settings snapshot.
func (s *Store) Get() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the settings document and schedules a coalesced flush.
// Setters fire on every keystroke in the UI, so writes are debounced.
func (s *Store) Set(settings domain.Settings) {
	s.mu.Lock()
	s.current = normalize(settings)
	s.mu.Unlock()

	s.schedule(s.writeFile)
}

// Flush forces any scheduled write to disk immediately.
func (s *Store) Flush() {
	s.writeFile()
}

// Reset restores defaults and removes the settings file.
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = domain.DefaultSettings()
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("settings file removal failed", "path", s.path, "error", err)
	}
}

// Credential implements ports.CredentialSource.
func (s *Store) Credential() string {
	return s.Get().APIKey
}

func (s *Store) writeFile() {
	s.mu.Lock()
	snapshot := s.current
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.logger.Warn("settings marshal failed", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("settings directory creation failed", "path", s.path, "error", err)
		return
	}

	// Write-then-rename keeps the document readable if we crash mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Warn("settings write failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("settings rename failed", "path", s.path, "error", err)
	}
}

func normalize(settings domain.Settings) domain.Settings {
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	if settings.Voice == "" {
		settings.Voice = domain.DefaultSettings().Voice
	}
	if settings.Speed <= 0 {
		settings.Speed = 1.0
	}
	return settings
}
