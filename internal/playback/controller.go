// Package playback plays synthesized speech, one clip at a time.
package playback

import (
	"context"
	"fmt"
	"sync"

	"tabitalk/internal/domain"
	"tabitalk/internal/ports"
)

// Controller runs the playback state machine: Idle, Loading while the
// clip is synthesized, Playing, then Ended or Error. Starting a new
// playback stops the current one first.
type Controller struct {
	synth  ports.Synthesizer
	player ports.SpeechPlayer
	events ports.EventSink

	mu      sync.Mutex
	current ports.Playback
	gen     uint64
}

func NewController(synth ports.Synthesizer, player ports.SpeechPlayer, events ports.EventSink) *Controller {
	return &Controller{
		synth:  synth,
		player: player,
		events: events,
	}
}

// Speak synthesizes text and plays it. Any playback in progress is
// stopped and released before the new one starts.
func (c *Controller) Speak(ctx context.Context, text string, voice string, speed float64) error {
	gen := c.takeOver()
	c.events.PlaybackStateChanged(domain.PlaybackLoading)

	clip, err := c.synth.Synthesize(ctx, text, voice, speed)
	if err != nil {
		c.failIfCurrent(gen, fmt.Errorf("synthesize speech: %w", err))
		return err
	}

	playing, err := c.player.Start(ctx, clip)
	if err != nil {
		c.failIfCurrent(gen, fmt.Errorf("start playback: %w", err))
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = playing.Stop()
		return nil
	}
	c.current = playing
	c.mu.Unlock()

	c.events.PlaybackStateChanged(domain.PlaybackPlaying)
	go c.watch(playing, gen)
	return nil
}

// Stop halts any playback in progress. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	playing := c.current
	c.current = nil
	c.gen++
	c.mu.Unlock()

	if playing != nil {
		_ = playing.Stop()
		c.events.PlaybackStateChanged(domain.PlaybackIdle)
	}
}

// takeOver claims the playback slot, stopping whatever held it.
func (c *Controller) takeOver() uint64 {
	c.mu.Lock()
	playing := c.current
	c.current = nil
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if playing != nil {
		_ = playing.Stop()
	}
	return gen
}

// failIfCurrent reports a failure unless a newer playback already took
// over the slot.
func (c *Controller) failIfCurrent(gen uint64, err error) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}
	c.events.AppError(domain.ErrorCodePlayback, err.Error())
	c.events.PlaybackStateChanged(domain.PlaybackError)
}

func (c *Controller) watch(playing ports.Playback, gen uint64) {
	err := <-playing.Done()

	c.mu.Lock()
	stale := gen != c.gen
	if !stale {
		c.current = nil
	}
	c.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		c.events.AppError(domain.ErrorCodePlayback, err.Error())
		c.events.PlaybackStateChanged(domain.PlaybackError)
		return
	}
	c.events.PlaybackStateChanged(domain.PlaybackEnded)
}
