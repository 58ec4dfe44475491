package voice

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
			if ev.Type == EventEnded {
				return got
			}
		case <-timeout:
			t.Fatalf("no EventEnded, got %v", got)
		}
	}
}

func TestNewCommandDictation_Missing(t *testing.T) {
	_, err := NewCommandDictation([]string{"definitely-not-a-recognizer-binary"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewCommandDictation(nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCommandDictation_Transcripts(t *testing.T) {
	requireShell(t)
	d, err := NewCommandDictation([]string{"sh", "-c", "echo 'Comment créer'; echo; echo 'une entreprise ?'"})
	require.NoError(t, err)
	require.NoError(t, d.Start())

	got := collect(t, d.Events())
	require.Len(t, got, 4)
	assert.Equal(t, EventStarted, got[0].Type)
	assert.Equal(t, Event{Type: EventFinal, Text: "Comment créer"}, got[1])
	assert.Equal(t, Event{Type: EventFinal, Text: "une entreprise ?"}, got[2])
	assert.Equal(t, EventEnded, got[3].Type)
}

func TestCommandDictation_PermissionDenied(t *testing.T) {
	requireShell(t)
	d, err := NewCommandDictation([]string{"sh", "-c", "echo 'microphone: permission denied' >&2; exit 1"})
	require.NoError(t, err)
	require.NoError(t, d.Start())

	got := collect(t, d.Events())
	require.Len(t, got, 3)
	assert.Equal(t, Event{Type: EventError, Kind: ErrPermissionDenied}, got[1])
}

func TestCommandDictation_StopEndsWithoutError(t *testing.T) {
	requireShell(t)
	d, err := NewCommandDictation([]string{"sh", "-c", "exec sleep 30"})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())

	got := collect(t, d.Events())
	for _, ev := range got {
		assert.NotEqual(t, EventError, ev.Type)
	}
	assert.Equal(t, EventEnded, got[len(got)-1].Type)
}
