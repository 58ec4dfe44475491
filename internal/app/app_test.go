package app

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burkina-qa/internal/askapi"
	"burkina-qa/internal/eventloop"
	"burkina-qa/internal/session"
	"burkina-qa/internal/speech"
	"burkina-qa/internal/storage"
	"burkina-qa/internal/ui"
	"burkina-qa/internal/voice"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []askapi.AskRequest
	release  chan struct{}
}

func (b *fakeBackend) Ask(ctx context.Context, req askapi.AskRequest) (*askapi.AskResponse, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	release := b.release
	b.mu.Unlock()
	if release != nil {
		<-release
	}
	return &askapi.AskResponse{
		Answer:  "Réponse à : " + req.Question,
		Sources: []askapi.Source{{Score: 0.9, Payload: map[string]any{"url": "https://servicepublic.gov.bf"}}},
	}, nil
}

func (b *fakeBackend) calls() []askapi.AskRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]askapi.AskRequest(nil), b.requests...)
}

type fakeDictation struct {
	mu     sync.Mutex
	starts int
	stops  int
	events chan voice.Event
}

func (d *fakeDictation) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return nil
}

func (d *fakeDictation) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDictation) Events() <-chan voice.Event { return d.events }

type fakeSynth struct {
	mu      sync.Mutex
	spoken  []speech.Utterance
	cancels int
	events  chan speech.Event
}

func (s *fakeSynth) Speak(u speech.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, u)
	return nil
}

func (s *fakeSynth) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return nil
}

func (s *fakeSynth) Voices() []speech.Voice {
	return []speech.Voice{{Name: "French_(France)", Lang: "fr-fr"}}
}

func (s *fakeSynth) Events() <-chan speech.Event { return s.events }

type harness struct {
	t       *testing.T
	app     *App
	loop    *eventloop.Loop
	out     *bytes.Buffer
	backend *fakeBackend
	answer  bool
	quit    bool
}

type harnessOpts struct {
	dictation voice.Dictation
	synth     speech.Synthesizer
	backend   *fakeBackend
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	if opts.backend == nil {
		opts.backend = &fakeBackend{}
	}
	h := &harness{t: t, loop: eventloop.New(), out: &bytes.Buffer{}, backend: opts.backend}
	display := ui.New(h.out, ui.Options{Models: []string{"qwen2.5:7b-instruct", "llama3.1:8b"}, Model: "qwen2.5:7b-instruct"})

	h.app = New(ctx, Deps{
		Loop:        h.loop,
		Display:     display,
		Backend:     opts.backend,
		Storage:     store,
		Dictation:   opts.dictation,
		Synthesizer: opts.synth,
		Options:     session.DefaultOptions(),
		Confirm:     func(string) bool { return h.answer },
		Quit:        func() { h.quit = true },
	})
	h.app.ForwardEvents(ctx)
	go h.loop.Run(ctx)
	return h
}

func (h *harness) on(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(fn))
}

func (h *harness) line(s string) {
	h.t.Helper()
	h.on(func() { h.app.HandleLine(s) })
}

func (h *harness) output() string {
	var s string
	h.on(func() { s = h.out.String() })
	return s
}

func (h *harness) waitIdle() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		var busy bool
		h.on(func() { busy = h.app.State().PendingRequestInFlight })
		return !busy
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) historyLen() int {
	var n int
	h.on(func() { n = h.app.History().Len() })
	return n
}

func TestQuestionFlow(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	h.line("  Comment obtenir un passeport ?  ")
	h.waitIdle()

	calls := h.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Comment obtenir un passeport ?", calls[0].Question)
	assert.Equal(t, "qwen2.5:7b-instruct", calls[0].Model)

	out := h.output()
	assert.Contains(t, out, "│ Comment obtenir un passeport ?")
	assert.Contains(t, out, "Réponse à : Comment obtenir un passeport ?")
	assert.Contains(t, out, "https://servicepublic.gov.bf (score: 0.900)")
	assert.Equal(t, 1, h.historyLen())
}

func TestBlankLineIgnored(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	h.line("   ")
	assert.Empty(t, h.backend.calls())
}

func TestInputDisabledWhileBusy(t *testing.T) {
	backend := &fakeBackend{release: make(chan struct{})}
	h := newHarness(t, harnessOpts{backend: backend})

	h.line("première")
	h.line("seconde")
	assert.Contains(t, h.output(), BusyNotice)

	h.line("/model llama3.1:8b")
	close(backend.release)
	h.waitIdle()

	assert.Len(t, backend.calls(), 1)
	assert.Equal(t, 1, h.historyLen())
	assert.Contains(t, h.output(), "Modèle inchangé")
}

func TestClearConfirmation(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.line("question")
	h.waitIdle()

	h.line("/clear")
	assert.Equal(t, 1, h.historyLen())
	assert.Contains(t, h.output(), KeptNotice)

	h.answer = true
	h.line("/clear")
	assert.Equal(t, 0, h.historyLen())
	assert.Contains(t, h.output(), ClearedNotice)
}

func TestHistoryPersistsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var first *App
	require.NoError(t, loop.Do(func() {
		first = New(ctx, Deps{Loop: loop, Display: ui.New(&bytes.Buffer{}, ui.Options{}), Backend: &fakeBackend{}, Storage: store})
		first.HandleLine("question persistée")
	}))
	require.Eventually(t, func() bool {
		var n int
		_ = loop.Do(func() { n = first.History().Len() })
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)

	var second *App
	require.NoError(t, loop.Do(func() {
		second = New(ctx, Deps{Loop: loop, Display: ui.New(&bytes.Buffer{}, ui.Options{}), Backend: &fakeBackend{}, Storage: store})
	}))
	e, ok := second.History().At(1)
	require.True(t, ok)
	assert.Equal(t, "question persistée", e.Question)
	assert.Equal(t, "https://servicepublic.gov.bf", e.Sources[0].Source)
}

func TestViewAndReplay(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.line("Quels sont les frais ?")
	h.waitIdle()

	h.line("/view 1")
	assert.Contains(t, h.output(), "┌─ Assistant #2")
	assert.Len(t, h.backend.calls(), 1, "view does not contact the backend")

	h.line("/replay 1")
	assert.Contains(t, h.output(), "✎ Brouillon : Quels sont les frais ?")
	h.line("")
	h.waitIdle()

	calls := h.backend.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Quels sont les frais ?", calls[1].Question)

	h.line("/view 9")
	assert.Contains(t, h.output(), "Numéro invalide : 9")
}

func TestMicUnavailable(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	h.line("/mic")
	assert.Contains(t, h.output(), voice.UnavailableLabel)
}

func TestDictationFillsDraft(t *testing.T) {
	dict := &fakeDictation{events: make(chan voice.Event, 4)}
	h := newHarness(t, harnessOpts{dictation: dict})

	h.line("/mic")
	dict.mu.Lock()
	assert.Equal(t, 1, dict.starts)
	dict.mu.Unlock()

	dict.events <- voice.Event{Type: voice.EventStarted}
	dict.events <- voice.Event{Type: voice.EventFinal, Text: "papiers pour"}
	dict.events <- voice.Event{Type: voice.EventFinal, Text: "un mariage"}
	require.Eventually(t, func() bool {
		var draft string
		h.on(func() { draft = h.app.display.Input() })
		return draft == "papiers pour un mariage"
	}, 2*time.Second, 5*time.Millisecond)

	h.line("civil ?")
	h.waitIdle()
	calls := h.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "papiers pour un mariage civil ?", calls[0].Question)

	dict.mu.Lock()
	assert.Equal(t, 1, dict.stops, "submit stops the running dictation")
	dict.mu.Unlock()
}

func TestSpeakAnswer(t *testing.T) {
	synth := &fakeSynth{events: make(chan speech.Event, 4)}
	h := newHarness(t, harnessOpts{synth: synth})
	h.line("question")
	h.waitIdle()

	h.line("/speak 1")
	synth.mu.Lock()
	require.Len(t, synth.spoken, 1)
	id := synth.spoken[0].ID
	assert.Equal(t, "Réponse à : question", synth.spoken[0].Text)
	synth.mu.Unlock()

	var speaking bool
	h.on(func() { speaking = h.app.State().Speaking() })
	assert.True(t, speaking)

	synth.events <- speech.Event{Type: speech.EventEnded, UtteranceID: id}
	require.Eventually(t, func() bool {
		h.on(func() { speaking = h.app.State().Speaking() })
		return !speaking
	}, 2*time.Second, 5*time.Millisecond)

	h.line("/speak 7")
	assert.Contains(t, h.output(), "Numéro invalide : 7")
}

func TestSubmitCancelsPlayback(t *testing.T) {
	synth := &fakeSynth{events: make(chan speech.Event, 4)}
	h := newHarness(t, harnessOpts{synth: synth})
	h.line("question")
	h.waitIdle()
	h.line("/speak 1")

	h.line("autre question")
	h.waitIdle()

	synth.mu.Lock()
	assert.Equal(t, 1, synth.cancels)
	synth.mu.Unlock()
}

func TestModelCommand(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	h.line("/model")
	assert.Contains(t, h.output(), "● qwen2.5:7b-instruct")

	h.line("/model llama3.1:8b")
	h.line("question")
	h.waitIdle()
	assert.Equal(t, "llama3.1:8b", h.backend.calls()[0].Model)

	h.line("/model gpt-5")
	assert.Contains(t, h.output(), "Modèle inchangé : gpt-5")
}

func TestUnknownCommandAndExit(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	h.line("/bonjour")
	assert.Contains(t, h.output(), "Commande inconnue : /bonjour")

	h.line("/exit")
	assert.True(t, h.quit)
}

func TestJoinDraft(t *testing.T) {
	assert.Equal(t, "a", joinDraft("", "a"))
	assert.Equal(t, "a", joinDraft(" a ", ""))
	assert.Equal(t, "a b", joinDraft("a", "b"))
}
