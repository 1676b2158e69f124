package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"tabitalk/internal/domain"
	"tabitalk/internal/ports"
)

// FFPlayPlayer plays encoded audio by piping it to ffplay's stdin.
type FFPlayPlayer struct {
	command   string
	stopGrace time.Duration
}

// NewFFPlayPlayer builds a player around the given command. stopGrace is
// how long Stop waits for the process to exit after an interrupt before
// killing it.
func NewFFPlayPlayer(command string, stopGrace time.Duration) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	if stopGrace <= 0 {
		stopGrace = 1200 * time.Millisecond
	}
	return &FFPlayPlayer{command: command, stopGrace: stopGrace}
}

func (p *FFPlayPlayer) Start(ctx context.Context, clip domain.AudioClip) (ports.Playback, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-autoexit",
		"-i", "-",
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdin = bytes.NewReader(clip.Data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start player: %v", domain.ErrDeviceUnavailable, err)
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			err = describePlayerExit(err, stderr.String())
		}
		done <- err
		close(done)
	}()

	return &ffplayPlayback{
		process:   cmd.Process,
		done:      done,
		stopGrace: p.stopGrace,
	}, nil
}

func describePlayerExit(err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() < 0 {
		// Killed by Stop; not a playback failure.
		return nil
	}
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		return fmt.Errorf("player failed: %w", err)
	}
	return fmt.Errorf("player failed: %s", detail)
}

type ffplayPlayback struct {
	process   *os.Process
	done      chan error
	stopGrace time.Duration

	stopOnce sync.Once
}

func (p *ffplayPlayback) Done() <-chan error {
	return p.done
}

func (p *ffplayPlayback) Stop() error {
	p.stopOnce.Do(func() {
		if p.process != nil {
			_ = p.process.Signal(os.Interrupt)
		}
		select {
		case <-p.done:
		case <-time.After(p.stopGrace):
			if p.process != nil {
				_ = p.process.Kill()
			}
		}
	})
	return nil
}
