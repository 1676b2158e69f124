package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tabitalk/internal/audio"
	"tabitalk/internal/domain"
	"tabitalk/internal/ports"
)

// Config controls gesture timing and capture parameters.
type Config struct {
	Audio           ports.AudioConfig
	PressDebounce   time.Duration
	CancelThreshold float64
	MinDuration     time.Duration
	MaxDuration     time.Duration
	PermissionTTL   time.Duration
}

// Controller drives the record gesture: it owns the debounce and
// ceiling timers, the microphone permission cache, and the capture
// session, and hands finished clips to the configured handler.
type Controller struct {
	capture ports.AudioCapture
	prober  ports.PermissionProber
	handler ports.ClipHandler
	events  ports.EventSink
	cfg     Config

	now func() time.Time

	mu            sync.Mutex
	machine       *Machine
	debounceTimer *time.Timer
	ceilingTimer  *time.Timer
	active        *activeCapture
	grantedUntil  time.Time
}

type activeCapture struct {
	session   ports.AudioSession
	startedAt time.Time
	done      chan struct{}

	bufMu sync.Mutex
	buf   bytes.Buffer
}

func NewController(
	capture ports.AudioCapture,
	prober ports.PermissionProber,
	handler ports.ClipHandler,
	events ports.EventSink,
	cfg Config,
) *Controller {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 60 * time.Second
	}
	return &Controller{
		capture: capture,
		prober:  prober,
		handler: handler,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		machine: NewMachine(cfg.CancelThreshold),
	}
}

// State returns the current gesture state.
func (c *Controller) State() domain.GestureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// Press starts a gesture at the given pointer position. The microphone
// permission is verified first; a denied probe fails the gesture and is
// retried on the next press rather than cached.
func (c *Controller) Press(ctx context.Context, y float64) error {
	if err := c.ensurePermission(ctx); err != nil {
		c.events.AppError(domain.ErrorCodeRecording, err.Error())
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tr := c.machine.Press(y)
	if tr.Action != ActionArmDebounce {
		return fmt.Errorf("%w: gesture already in progress", domain.ErrBusy)
	}
	c.events.GestureStateChanged(tr.State, tr.Reason)

	c.debounceTimer = time.AfterFunc(c.cfg.PressDebounce, func() {
		c.debounceElapsed(ctx)
	})
	return nil
}

// Drag updates the slide-to-cancel flag from the current pointer
// position.
func (c *Controller) Drag(y float64) {
	c.mu.Lock()
	tr := c.machine.Drag(y)
	c.mu.Unlock()

	if tr.ArmedEdge {
		c.events.CancelArmed(tr.Armed)
	}
}

// Release ends the gesture: a qualifying recording is finalized and
// handed to the clip handler, anything else is discarded.
func (c *Controller) Release(ctx context.Context) {
	c.mu.Lock()
	c.stopTimersLocked()

	longEnough := false
	if c.active != nil {
		longEnough = c.now().Sub(c.active.startedAt) >= c.cfg.MinDuration
	}
	tr := c.machine.Release(longEnough)
	c.finalizeLocked(ctx, tr)
}

// Cancel discards any gesture in progress. Safe to call at any time.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.stopTimersLocked()
	tr := c.machine.Cancel()
	c.finalizeLocked(context.Background(), tr)
}

// finalizeLocked executes a release/cancel transition and returns the
// machine to idle. It takes ownership of c.mu and unlocks it.
func (c *Controller) finalizeLocked(ctx context.Context, tr Transition) {
	switch tr.Action {
	case ActionDropPress:
		c.events.GestureStateChanged(domain.GestureIdle, tr.Reason)
		c.mu.Unlock()

	case ActionSend:
		active := c.detachCaptureLocked()
		c.events.GestureStateChanged(tr.State, tr.Reason)
		c.machine.Finish()
		c.mu.Unlock()

		c.events.CancelArmed(false)
		clip, err := c.closeCapture(active)
		if err != nil {
			c.events.AppError(domain.ErrorCodeRecording, err.Error())
			c.events.GestureStateChanged(domain.GestureIdle, domain.ReasonRecordingDiscarded)
			return
		}
		c.events.GestureStateChanged(domain.GestureIdle, tr.Reason)
		c.handler.HandleClip(ctx, clip)

	case ActionDiscard:
		active := c.detachCaptureLocked()
		c.events.GestureStateChanged(tr.State, tr.Reason)
		c.machine.Finish()
		c.mu.Unlock()

		c.events.CancelArmed(false)
		if active != nil {
			_, _ = c.closeCapture(active)
		}
		c.events.GestureStateChanged(domain.GestureIdle, tr.Reason)

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) debounceElapsed(ctx context.Context) {
	c.mu.Lock()
	tr := c.machine.DebounceElapsed()
	if tr.Action != ActionStartCapture {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	session, err := c.capture.Start(ctx, c.cfg.Audio)

	c.mu.Lock()
	if c.machine.State() != domain.GestureRecording {
		c.mu.Unlock()
		if err == nil {
			_ = session.Stop()
			_ = session.Close()
		}
		return
	}
	if err != nil {
		c.machine.Cancel()
		c.machine.Finish()
		c.mu.Unlock()
		c.events.AppError(domain.ErrorCodeRecording, err.Error())
		c.events.GestureStateChanged(domain.GestureIdle, domain.ReasonRecordingDiscarded)
		return
	}

	active := &activeCapture{
		session:   session,
		startedAt: c.now(),
		done:      make(chan struct{}),
	}
	c.active = active
	c.ceilingTimer = time.AfterFunc(c.cfg.MaxDuration, func() {
		c.ceilingElapsed(ctx)
	})
	c.mu.Unlock()

	go drainCapture(active)
	c.events.GestureStateChanged(tr.State, tr.Reason)
}

func (c *Controller) ceilingElapsed(ctx context.Context) {
	c.mu.Lock()
	c.stopTimersLocked()
	tr := c.machine.CeilingElapsed()
	c.finalizeLocked(ctx, tr)
}

// ensurePermission probes microphone access unless a recent grant is
// still fresh. Only grants are cached: a denied probe is retried on the
// next gesture.
func (c *Controller) ensurePermission(ctx context.Context) error {
	c.mu.Lock()
	fresh := c.now().Before(c.grantedUntil)
	c.mu.Unlock()
	if fresh {
		return nil
	}

	if err := c.prober.Probe(ctx, c.cfg.Audio); err != nil {
		return err
	}

	c.mu.Lock()
	c.grantedUntil = c.now().Add(c.cfg.PermissionTTL)
	c.mu.Unlock()
	return nil
}

func (c *Controller) detachCaptureLocked() *activeCapture {
	active := c.active
	c.active = nil
	return active
}

func (c *Controller) stopTimersLocked() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.ceilingTimer != nil {
		c.ceilingTimer.Stop()
		c.ceilingTimer = nil
	}
}

// closeCapture stops the session, waits for the drain goroutine, and
// encodes the accumulated PCM as a WAV clip.
func (c *Controller) closeCapture(active *activeCapture) (domain.AudioClip, error) {
	if active == nil {
		return domain.AudioClip{}, errors.New("no capture in progress")
	}
	if err := active.session.Stop(); err != nil {
		_ = active.session.Close()
		<-active.done
		return domain.AudioClip{}, fmt.Errorf("stop capture: %w", err)
	}
	<-active.done
	_ = active.session.Close()

	active.bufMu.Lock()
	pcm := active.buf.Bytes()
	active.bufMu.Unlock()

	wav, err := audio.EncodeWAV(pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if err != nil {
		return domain.AudioClip{}, fmt.Errorf("encode clip: %w", err)
	}
	return domain.AudioClip{
		Data:     wav,
		MIMEType: "audio/wav",
		Duration: audio.PCMDuration(len(pcm), c.cfg.Audio.SampleRate, c.cfg.Audio.Channels),
	}, nil
}

func drainCapture(active *activeCapture) {
	defer close(active.done)

	buf := make([]byte, 4096)
	for {
		n, err := active.session.Read(buf)
		if n > 0 {
			active.bufMu.Lock()
			active.buf.Write(buf[:n])
			active.bufMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}
