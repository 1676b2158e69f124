// Package recording owns the press-and-hold record gesture: the pure
// transition machine lives here, the capture lifecycle and timers live
// in the controller.
package recording

import (
	"tabitalk/internal/domain"
)

// Action tells the controller what side effect a transition requires.
type Action int

const (
	ActionNone Action = iota
	// ActionArmDebounce starts the press debounce timer.
	ActionArmDebounce
	// ActionStartCapture opens the microphone session.
	ActionStartCapture
	// ActionSend finalizes the capture and ships the clip.
	ActionSend
	// ActionDiscard finalizes the capture and drops the clip.
	ActionDiscard
	// ActionDropPress abandons a press before capture started.
	ActionDropPress
)

// Transition is the result of feeding one gesture event to the machine.
type Transition struct {
	State     domain.GestureState
	Reason    domain.StateReason
	Action    Action
	Armed     bool
	ArmedEdge bool
}

// Machine is the pure gesture state machine. It holds no timers and
// performs no I/O; the controller drives it and executes the returned
// actions. Not safe for concurrent use.
type Machine struct {
	state           domain.GestureState
	armed           bool
	originY         float64
	cancelThreshold float64
}

func NewMachine(cancelThreshold float64) *Machine {
	return &Machine{
		state:           domain.GestureIdle,
		cancelThreshold: cancelThreshold,
	}
}

func (m *Machine) State() domain.GestureState { return m.state }

func (m *Machine) Armed() bool { return m.armed }

// Press begins a gesture. Ignored unless idle.
func (m *Machine) Press(y float64) Transition {
	if m.state != domain.GestureIdle {
		return m.stay()
	}
	m.state = domain.GesturePressing
	m.originY = y
	m.armed = false
	return Transition{State: m.state, Reason: domain.ReasonPressWaiting, Action: ActionArmDebounce}
}

// DebounceElapsed promotes a sustained press to recording.
func (m *Machine) DebounceElapsed() Transition {
	if m.state != domain.GesturePressing {
		return m.stay()
	}
	m.state = domain.GestureRecording
	return Transition{State: m.state, Reason: domain.ReasonRecordingStarted, Action: ActionStartCapture}
}

// Drag updates the slide-to-cancel flag from the current pointer
// position. Only an upward drag past the threshold arms; y grows
// downward in screen coordinates. The flag reflects position only:
// re-crossing the threshold disarms. Drag tracking is live only while
// recording.
func (m *Machine) Drag(y float64) Transition {
	if m.state != domain.GestureRecording {
		return m.stay()
	}
	armed := m.originY-y >= m.cancelThreshold
	edge := armed != m.armed
	m.armed = armed
	return Transition{State: m.state, Action: ActionNone, Armed: armed, ArmedEdge: edge}
}

// Release ends the gesture. longEnough reports whether the recording
// met the minimum duration; it is ignored outside the recording state.
func (m *Machine) Release(longEnough bool) Transition {
	switch m.state {
	case domain.GesturePressing:
		m.reset()
		return Transition{State: m.state, Reason: domain.ReasonTapTooBrief, Action: ActionDropPress}
	case domain.GestureRecording:
		if m.armed {
			m.state = domain.GestureCancelling
			return Transition{State: m.state, Reason: domain.ReasonRecordingDiscarded, Action: ActionDiscard}
		}
		if !longEnough {
			m.state = domain.GestureCancelling
			return Transition{State: m.state, Reason: domain.ReasonRecordingTooShort, Action: ActionDiscard}
		}
		m.state = domain.GestureSending
		return Transition{State: m.state, Reason: domain.ReasonRecordingSent, Action: ActionSend}
	default:
		return m.stay()
	}
}

// Cancel discards the gesture regardless of drag position (Escape,
// pointer leaving the window).
func (m *Machine) Cancel() Transition {
	switch m.state {
	case domain.GesturePressing:
		m.reset()
		return Transition{State: m.state, Reason: domain.ReasonRecordingDiscarded, Action: ActionDropPress}
	case domain.GestureRecording:
		m.state = domain.GestureCancelling
		return Transition{State: m.state, Reason: domain.ReasonRecordingDiscarded, Action: ActionDiscard}
	default:
		return m.stay()
	}
}

// CeilingElapsed auto-sends a recording that hit the duration ceiling.
func (m *Machine) CeilingElapsed() Transition {
	if m.state != domain.GestureRecording {
		return m.stay()
	}
	m.state = domain.GestureSending
	return Transition{State: m.state, Reason: domain.ReasonRecordingCeiling, Action: ActionSend}
}

// Finish returns to idle after the controller completed a send or
// discard.
func (m *Machine) Finish() Transition {
	if m.state != domain.GestureSending && m.state != domain.GestureCancelling {
		return m.stay()
	}
	m.reset()
	return Transition{State: m.state, Action: ActionNone}
}

func (m *Machine) reset() {
	m.state = domain.GestureIdle
	m.armed = false
	m.originY = 0
}

func (m *Machine) stay() Transition {
	return Transition{State: m.state, Action: ActionNone, Armed: m.armed}
}
