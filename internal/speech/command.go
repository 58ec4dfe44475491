package speech

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ErrUnavailable is returned when the synthesizer binary cannot be found
var ErrUnavailable = errors.New("speech: synthesizer command not available")

// baseWordsPerMinute is espeak-ng's default speed, used for Rate 1.0
const baseWordsPerMinute = 175

// CommandSynthesizer speaks through espeak-ng (or a compatible binary).
// The voice list is read asynchronously from `--voices`.
type CommandSynthesizer struct {
	name   string
	events chan Event

	mu       sync.Mutex
	voices   []Voice
	cmd      *exec.Cmd
	current  string
	canceled string
}

// NewCommandSynthesizer resolves binary on PATH and starts loading voices.
func NewCommandSynthesizer(binary string) (*CommandSynthesizer, error) {
	if binary == "" {
		return nil, ErrUnavailable
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s := &CommandSynthesizer{
		name:   path,
		events: make(chan Event, 16),
	}
	go s.loadVoices()
	return s, nil
}

// Events returns the notification stream. It is never closed.
func (s *CommandSynthesizer) Events() <-chan Event {
	return s.events
}

// Voices returns the installed voices; empty until loaded.
func (s *CommandSynthesizer) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *CommandSynthesizer) loadVoices() {
	out, err := exec.Command(s.name, "--voices").Output()
	voices := parseVoices(string(out))

	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()

	// Signal even on failure so deferred playback falls back to the default voice.
	s.events <- Event{Type: EventVoicesChanged, Err: err}
}

// Speak starts playing u, replacing any running utterance
func (s *CommandSynthesizer) Speak(u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil {
		s.canceled = s.current
		_ = s.cmd.Process.Kill()
	}

	voice := strings.ToLower(u.Lang)
	if u.Voice != nil && u.Voice.Lang != "" {
		voice = u.Voice.Lang
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	args := []string{"-v", voice, "-s", strconv.Itoa(int(baseWordsPerMinute * rate)), "--", u.Text}

	cmd := exec.Command(s.name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start synthesizer: %w", err)
	}
	s.cmd = cmd
	s.current = u.ID

	go func() {
		s.events <- Event{Type: EventStarted, UtteranceID: u.ID}
		err := cmd.Wait()

		s.mu.Lock()
		canceled := s.canceled == u.ID
		if s.cmd == cmd {
			s.cmd = nil
			s.current = ""
		}
		s.mu.Unlock()

		if err != nil && !canceled {
			s.events <- Event{Type: EventError, UtteranceID: u.ID, Err: err}
			return
		}
		s.events <- Event{Type: EventEnded, UtteranceID: u.ID}
	}()
	return nil
}

// Cancel stops the running utterance, if any
func (s *CommandSynthesizer) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	s.canceled = s.current
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop synthesizer: %w", err)
	}
	return nil
}

// parseVoices reads the `--voices` table:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  fr-fr           M  French_(France)    roa/fr        (fr 5)
func parseVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}
