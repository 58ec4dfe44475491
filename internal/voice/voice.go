// Package voice drives dictation: an Idle ⇄ Listening state machine whose
// transitions follow the capability's own acknowledgements.
package voice

import (
	"log/slog"

	"github.com/google/uuid"

	"burkina-qa/internal/state"
)

// State of the dictation machine
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// EventType names a capability notification
type EventType int

const (
	EventStarted EventType = iota
	EventFinal
	EventError
	EventEnded
)

// ErrorKind classifies capture failures
type ErrorKind int

const (
	ErrCapture ErrorKind = iota
	ErrPermissionDenied
)

// User-facing labels
const (
	UnavailableLabel  = "Dictée vocale non disponible"
	PermissionMessage = "Accès au micro refusé. Autorisez le micro puis réessayez."
	CaptureMessage    = "Erreur de capture audio."
)

// Event is delivered by a Dictation; Text is set for EventFinal, Kind for EventError
type Event struct {
	Type EventType
	Text string
	Kind ErrorKind
}

// Dictation is the platform speech-to-text capability
type Dictation interface {
	Start() error
	Stop() error
	Events() <-chan Event
}

// Buffer is the pending question text
type Buffer interface {
	Input() string
	SetInput(text string)
}

// Indicator projects the machine onto the mic control
type Indicator interface {
	SetMicState(s State)
	DisableMic(label string)
	Notify(msg string)
}

// Controller owns the dictation machine. Loop-confined.
type Controller struct {
	dictation Dictation
	session   *state.Session
	buffer    Buffer
	indicator Indicator
	logger    *slog.Logger

	state    State
	starting bool
}

// NewController wires the machine. A nil Dictation disables the mic for good.
func NewController(d Dictation, session *state.Session, buf Buffer, ind Indicator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		dictation: d,
		session:   session,
		buffer:    buf,
		indicator: ind,
		logger:    logger.With("component", "voice"),
	}
	if d == nil {
		ind.DisableMic(UnavailableLabel)
	}
	return c
}

// Available reports whether dictation exists on this platform.
func (c *Controller) Available() bool { return c.dictation != nil }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Start asks the capability to begin. The machine moves to Listening only
// when EventStarted arrives.
func (c *Controller) Start() bool {
	if !c.Available() || c.state != Idle || c.starting {
		return false
	}
	c.starting = true
	if err := c.dictation.Start(); err != nil {
		c.starting = false
		c.logger.Warn("dictation start failed", "error", err)
		c.indicator.Notify(CaptureMessage)
		return false
	}
	return true
}

// Stop asks the capability to end. Safe in any state; a no-op when idle.
func (c *Controller) Stop() {
	if !c.Available() || (c.state == Idle && !c.starting) {
		return
	}
	if err := c.dictation.Stop(); err != nil {
		c.logger.Warn("dictation stop failed", "error", err)
	}
}

// Toggle starts when idle and stops otherwise.
func (c *Controller) Toggle() {
	if c.state == Listening || c.starting {
		c.Stop()
		return
	}
	c.Start()
}

// Handle applies a capability event.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case EventStarted:
		c.starting = false
		c.state = Listening
		c.session.ActiveRecognition = uuid.NewString()
		c.logger.Debug("dictation started", "handle", c.session.ActiveRecognition)
		c.indicator.SetMicState(Listening)

	case EventFinal:
		c.appendTranscript(ev.Text)

	case EventError:
		// The capability still sends EventEnded; the state changes there.
		c.logger.Warn("dictation error", "kind", ev.Kind)
		if ev.Kind == ErrPermissionDenied {
			c.indicator.Notify(PermissionMessage)
		} else {
			c.indicator.Notify(CaptureMessage)
		}

	case EventEnded:
		c.starting = false
		c.state = Idle
		c.session.ActiveRecognition = ""
		c.indicator.SetMicState(Idle)
	}
}

func (c *Controller) appendTranscript(text string) {
	if text == "" {
		return
	}
	current := c.buffer.Input()
	if current == "" {
		c.buffer.SetInput(text)
		return
	}
	c.buffer.SetInput(current + " " + text)
}
