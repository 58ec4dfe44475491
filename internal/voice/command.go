package voice

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrUnavailable is returned when the recognizer binary cannot be found
var ErrUnavailable = errors.New("voice: dictation command not available")

// CommandDictation runs an external recognizer. Each non-empty stdout line is
// a final transcript; the process exiting ends the dictation.
type CommandDictation struct {
	name   string
	args   []string
	events chan Event

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
}

// NewCommandDictation resolves command[0] on PATH.
func NewCommandDictation(command []string) (*CommandDictation, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrUnavailable
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &CommandDictation{
		name:   path,
		args:   command[1:],
		events: make(chan Event, 16),
	}, nil
}

// Events returns the notification stream. It is never closed.
func (d *CommandDictation) Events() <-chan Event {
	return d.events
}

// Start launches the recognizer
func (d *CommandDictation) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return errors.New("voice: dictation already running")
	}

	cmd := exec.Command(d.name, d.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open recognizer output: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}
	d.cmd = cmd

	go func() {
		d.events <- Event{Type: EventStarted}

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if text := strings.TrimSpace(scanner.Text()); text != "" {
				d.events <- Event{Type: EventFinal, Text: text}
			}
		}

		err := cmd.Wait()

		d.mu.Lock()
		stopped := d.stopping
		d.cmd = nil
		d.stopping = false
		d.mu.Unlock()

		if err != nil && !stopped {
			d.events <- Event{Type: EventError, Kind: classify(stderr.String())}
		}
		d.events <- Event{Type: EventEnded}
	}()

	return nil
}

// Stop terminates the recognizer; EventEnded follows once it has exited
func (d *CommandDictation) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	d.stopping = true
	if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop recognizer: %w", err)
	}
	return nil
}

func classify(stderr string) ErrorKind {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"permission denied", "not-allowed", "not allowed", "access denied"} {
		if strings.Contains(lower, marker) {
			return ErrPermissionDenied
		}
	}
	return ErrCapture
}
