// Package state holds the process-wide session state shared by the
// controllers. It is confined to the event loop and carries no locks.
//
// Writers:
//   - PendingRequestInFlight: session.Controller
//   - ActiveRecognition: voice.Controller
//   - ActiveUtterance, VoiceCapabilityReady: speech.Controller
//
// session.Controller clears the two handles only through voice.Controller.Stop
// and speech.Controller.Cancel, both idempotent.
package state

// Session is the single mutable state of a running client
type Session struct {
	PendingRequestInFlight bool

	// ActiveUtterance is the handle of the utterance being played, empty when none.
	ActiveUtterance string

	// ActiveRecognition is the handle of the running dictation, empty when none.
	ActiveRecognition string

	// VoiceCapabilityReady reports that the synthesizer voice list has loaded.
	VoiceCapabilityReady bool
}

// New returns an idle session state.
func New() *Session {
	return &Session{}
}

// Speaking reports whether an utterance is active.
func (s *Session) Speaking() bool { return s.ActiveUtterance != "" }

// Listening reports whether a dictation is active.
func (s *Session) Listening() bool { return s.ActiveRecognition != "" }
