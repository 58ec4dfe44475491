// Package app wires the controllers to the terminal page and routes each
// input line to a command or a question. Everything here runs on the loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"burkina-qa/internal/eventloop"
	"burkina-qa/internal/history"
	"burkina-qa/internal/render"
	"burkina-qa/internal/session"
	"burkina-qa/internal/speech"
	"burkina-qa/internal/state"
	"burkina-qa/internal/ui"
	"burkina-qa/internal/voice"
)

// Notices
const (
	BusyNotice     = "Une question est déjà en cours de traitement."
	ClearQuestion  = "Effacer tout l'historique ?"
	ClearedNotice  = "Historique effacé."
	KeptNotice     = "Historique conservé."
	NoSpeechNotice = "Lecture vocale non disponible."
	UnknownCommand = "Commande inconnue : %s (voir /help)"
	BadIndexNotice = "Numéro invalide : %s"
	ModelNotice    = "Modèle inchangé : %s n'est pas disponible."
)

// Deps groups what New needs. Dictation and Synthesizer are nil interfaces
// when the capability is missing.
type Deps struct {
	Loop        *eventloop.Loop
	Display     *ui.Display
	Backend     session.Backend
	Storage     history.Storage
	Dictation   voice.Dictation
	Synthesizer speech.Synthesizer
	Options     session.Options
	Logger      *slog.Logger

	// Confirm asks an [o/N] question and blocks for the answer.
	Confirm func(question string) bool
	// Quit ends the session.
	Quit    func()
}

// App is the running client
type App struct {
	loop    *eventloop.Loop
	display *ui.Display
	state   *state.Session
	conv    *session.Controller
	voice   *voice.Controller
	speech  *speech.Controller
	history *history.Store
	logger  *slog.Logger

	dictation voice.Dictation
	synth     speech.Synthesizer
	confirm   func(string) bool
	quit      func()
}

// New wires the client and loads the persisted history.
func New(ctx context.Context, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := state.New()
	d := deps.Display

	a := &App{
		loop:      deps.Loop,
		display:   d,
		state:     st,
		logger:    logger.With("component", "app"),
		dictation: deps.Dictation,
		synth:     deps.Synthesizer,
		confirm:   deps.Confirm,
		quit:      deps.Quit,
	}

	a.history = history.NewStore(deps.Storage,
		history.WithLogger(logger),
		history.WithOnChange(d.RefreshHistory),
	)

	a.voice = voice.NewController(deps.Dictation, st, d, d, logger)
	a.speech = speech.NewController(deps.Synthesizer, st, d, logger)

	a.conv = session.NewController(ctx, session.Deps{
		Backend:    deps.Backend,
		Dispatcher: deps.Loop,
		Session:    st,
		View:       d,
		Dictation:  a.voice,
		Playback:   a.speech,
		History:    a.history,
		Logger:     logger,
	}, deps.Options)

	a.history.Load()
	return a
}

// State exposes the session state.
func (a *App) State() *state.Session { return a.state }

// History exposes the history store.
func (a *App) History() *history.Store { return a.history }

// ForwardEvents relays capability events onto the loop until ctx ends.
func (a *App) ForwardEvents(ctx context.Context) {
	if a.dictation != nil {
		go forward(ctx, a.dictation.Events(), a.loop, a.handleVoice)
	}
	if a.synth != nil {
		go forward(ctx, a.synth.Events(), a.loop, a.speech.Handle)
	}
}

func forward[E any](ctx context.Context, events <-chan E, d eventloop.Dispatcher, handle func(E)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !d.Post(func() { handle(ev) }) {
				return
			}
		}
	}
}

func (a *App) handleVoice(ev voice.Event) {
	a.voice.Handle(ev)
	if ev.Type == voice.EventFinal && !a.display.Busy() {
		a.display.FocusInput()
	}
}

// HandleLine processes one line typed by the user.
func (a *App) HandleLine(line string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "/") {
		if a.command(trimmed) {
			a.prompt()
		}
		return
	}

	if a.display.Busy() {
		a.display.Notify(BusyNotice)
		return
	}
	question := joinDraft(a.display.Input(), trimmed)
	if !a.conv.Submit(question) {
		a.prompt()
	}
}

// joinDraft completes a dictated or replayed draft with the typed text.
func joinDraft(draft, typed string) string {
	draft = strings.TrimSpace(draft)
	switch {
	case draft == "":
		return typed
	case typed == "":
		return draft
	default:
		return draft + " " + typed
	}
}

// command runs a slash command and reports whether the prompt should be shown.
func (a *App) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/help":
		a.display.PrintHelp()
	case "/history":
		a.display.PrintHistory()
	case "/view":
		if e, ok := a.entry(arg); ok {
			a.history.View(e, a.display, a.speech.Available())
		}
	case "/replay":
		if e, ok := a.entry(arg); ok {
			if a.display.Busy() {
				a.display.Notify(BusyNotice)
				return false
			}
			history.Replay(e, a.display)
			return false
		}
	case "/clear":
		a.clearHistory()
	case "/mic":
		a.toggleMic()
	case "/speak":
		a.speak(arg)
	case "/model":
		a.model(arg)
	case "/exit", "/quit":
		a.Shutdown()
		if a.quit != nil {
			a.quit()
		}
		return false
	default:
		a.display.PrintWarning(fmt.Sprintf(UnknownCommand, name))
	}
	return true
}

func (a *App) entry(arg string) (history.Entry, bool) {
	n, err := strconv.Atoi(arg)
	if err == nil {
		if e, ok := a.history.At(n); ok {
			return e, true
		}
	}
	a.display.PrintWarning(fmt.Sprintf(BadIndexNotice, arg))
	return history.Entry{}, false
}

func (a *App) clearHistory() {
	if a.history.Len() == 0 {
		a.display.PrintInfo(ui.EmptyHistory)
		return
	}
	cleared := a.history.Clear(func() bool {
		return a.confirm != nil && a.confirm(ClearQuestion)
	})
	if cleared {
		a.display.PrintSuccess(ClearedNotice)
		return
	}
	a.display.PrintInfo(KeptNotice)
}

func (a *App) toggleMic() {
	if !a.voice.Available() {
		a.display.Notify(voice.UnavailableLabel)
		return
	}
	if a.display.Busy() {
		a.display.Notify(BusyNotice)
		return
	}
	a.voice.Toggle()
}

func (a *App) speak(arg string) {
	if !a.speech.Available() {
		a.display.Notify(NoSpeechNotice)
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		a.display.PrintWarning(fmt.Sprintf(BadIndexNotice, arg))
		return
	}
	msg, button, ok := a.display.AssistantMessage(n)
	if !ok || msg.Role != render.RoleAssistant || !msg.Speakable {
		a.display.PrintWarning(fmt.Sprintf(BadIndexNotice, arg))
		return
	}
	a.speech.Toggle(msg.Text, button)
}

func (a *App) model(arg string) {
	if arg == "" {
		a.display.PrintModels()
		return
	}
	if !a.display.SetModel(arg) {
		a.display.PrintWarning(fmt.Sprintf(ModelNotice, arg))
		return
	}
	a.display.PrintSuccess("Modèle : " + arg)
}

func (a *App) prompt() {
	if !a.display.Busy() {
		a.display.FocusInput()
	}
}

// Shutdown stops dictation and playback. Idempotent.
func (a *App) Shutdown() {
	a.voice.Stop()
	a.speech.Cancel()
	a.display.Close()
}
