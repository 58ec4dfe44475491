// Package speech plays assistant answers aloud. At most one utterance exists
// at a time; starting another stops the current one.
package speech

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"burkina-qa/internal/state"
)

// State of a message's playback control
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Playback settings
const (
	Lang = "fr-FR"
	Rate = 1.0
)

// FailureMessage is shown when the synthesizer refuses an utterance
const FailureMessage = "Lecture vocale impossible."

// Voice is an installed synthesis voice
type Voice struct {
	Name string
	Lang string
}

// Utterance is one playback request
type Utterance struct {
	ID    string
	Text  string
	Lang  string
	Rate  float64
	Voice *Voice // nil selects the synthesizer default
}

// EventType names a synthesizer notification
type EventType int

const (
	EventStarted EventType = iota
	EventEnded
	EventError
	EventVoicesChanged
)

// Event is delivered by a Synthesizer
type Event struct {
	Type        EventType
	UtteranceID string
	Err         error
}

// Synthesizer is the platform text-to-speech capability. Voices may be empty
// until EventVoicesChanged has been delivered.
type Synthesizer interface {
	Speak(u Utterance) error
	Cancel() error
	Voices() []Voice
	Events() <-chan Event
}

// Indicator projects playback onto the per-message controls
type Indicator interface {
	SetSpeechState(button string, s State)
	Notify(msg string)
}

type playback struct {
	id     string
	button string
}

// Controller owns the playback machine. Loop-confined.
type Controller struct {
	synth     Synthesizer
	session   *state.Session
	indicator Indicator
	logger    *slog.Logger

	active        *playback
	pending       func()
	pendingButton string
}

// NewController wires the machine; a nil Synthesizer disables playback.
func NewController(synth Synthesizer, session *state.Session, ind Indicator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		synth:     synth,
		session:   session,
		indicator: ind,
		logger:    logger.With("component", "speech"),
	}
	if synth != nil && len(synth.Voices()) > 0 {
		session.VoiceCapabilityReady = true
	}
	return c
}

// Available reports whether synthesis exists on this platform.
func (c *Controller) Available() bool { return c.synth != nil }

// Playing returns the control currently playing, if any.
func (c *Controller) Playing() (string, bool) {
	if c.active == nil {
		return "", false
	}
	return c.active.button, true
}

// Toggle plays text for button, or stops it if button is the one playing.
// Any other playback is stopped first.
func (c *Controller) Toggle(text, button string) {
	if !c.Available() {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	same := (c.active != nil && c.active.button == button) ||
		(c.pending != nil && c.pendingButton == button)
	c.Cancel()
	if same {
		return
	}

	if !c.ready() {
		c.pending = func() { c.start(text, button) }
		c.pendingButton = button
		c.logger.Debug("voices not loaded, playback deferred", "button", button)
		return
	}
	c.start(text, button)
}

// Cancel stops any playback and drops a deferred request. Idempotent.
func (c *Controller) Cancel() {
	c.pending = nil
	c.pendingButton = ""
	if c.active == nil {
		return
	}
	button := c.active.button
	c.active = nil
	c.session.ActiveUtterance = ""
	if err := c.synth.Cancel(); err != nil {
		c.logger.Warn("speech cancel failed", "error", err)
	}
	c.indicator.SetSpeechState(button, Idle)
}

// Handle applies a synthesizer event.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case EventVoicesChanged:
		c.session.VoiceCapabilityReady = true
		if fn := c.pending; fn != nil {
			c.pending = nil
			c.pendingButton = ""
			fn()
		}

	case EventStarted:
		c.logger.Debug("utterance started", "utterance", ev.UtteranceID)

	case EventEnded, EventError:
		if ev.Type == EventError {
			c.logger.Warn("utterance failed", "utterance", ev.UtteranceID, "error", ev.Err)
		}
		if c.active == nil || c.active.id != ev.UtteranceID {
			return
		}
		button := c.active.button
		c.active = nil
		c.session.ActiveUtterance = ""
		c.indicator.SetSpeechState(button, Idle)
	}
}

func (c *Controller) ready() bool {
	if c.session.VoiceCapabilityReady {
		return true
	}
	if len(c.synth.Voices()) > 0 {
		c.session.VoiceCapabilityReady = true
		return true
	}
	return false
}

func (c *Controller) start(text, button string) {
	u := Utterance{
		ID:    uuid.NewString(),
		Text:  text,
		Lang:  Lang,
		Rate:  Rate,
		Voice: FrenchVoice(c.synth.Voices()),
	}
	if err := c.synth.Speak(u); err != nil {
		c.logger.Warn("speech start failed", "error", err)
		c.indicator.Notify(FailureMessage)
		return
	}
	c.active = &playback{id: u.ID, button: button}
	c.session.ActiveUtterance = u.ID
	c.indicator.SetSpeechState(button, Playing)
}

// FrenchVoice returns the first voice whose language is French, or nil.
func FrenchVoice(voices []Voice) *Voice {
	for i := range voices {
		if strings.HasPrefix(strings.ToLower(voices[i].Lang), "fr") {
			v := voices[i]
			return &v
		}
	}
	return nil
}
