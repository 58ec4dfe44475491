// Package ui is the terminal page: transcript, input draft, busy controls,
// mic and playback indicators, model selector and history panel.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"burkina-qa/internal/history"
	"burkina-qa/internal/render"
	"burkina-qa/internal/speech"
	"burkina-qa/internal/voice"
)

// Labels
const (
	LoadingLabel = "Recherche de la réponse..."
	EmptyHistory = "Aucun échange enregistré."
	SourcesTitle = "Sources :"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Options configures a Display
type Options struct {
	Width    int
	Markdown bool // render answers with glamour; only for terminals
	Animate  bool // spinner while loading; only for terminals
	Models   []string
	Model    string
	Now      func() time.Time
}

// Display writes the page to a terminal. Loop-confined, except for the
// spinner goroutine which only touches out under mu.
type Display struct {
	mu  sync.Mutex
	out io.Writer

	width    int
	animate  bool
	renderer *glamour.TermRenderer
	st       styles
	now      func() time.Time

	draft     string
	busy      bool
	models    []string
	model     string
	micOff    string
	listening bool
	playing   string

	assistant []render.Message
	entries   []history.Entry

	loadingSince time.Time
	elapsed      time.Duration
	spinStop     chan struct{}
	spinDone     chan struct{}
}

// New creates a display writing to out
func New(out io.Writer, opts Options) *Display {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	d := &Display{
		out:     out,
		width:   width,
		animate: opts.Animate,
		st:      newStyles(lipgloss.NewRenderer(out)),
		now:     now,
		models:  opts.Models,
		model:   opts.Model,
	}
	if opts.Markdown {
		// Plain output on failure
		d.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-10),
		)
	}
	return d
}

func (d *Display) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

// PrintWelcome displays the banner and the capability summary
func (d *Display) PrintWelcome(health string) {
	d.printf("%s\n", d.st.header.Render("Démarches administratives du Burkina Faso"))
	d.printf("%s %s\n", d.st.muted.Render("Modèle :"), d.SelectedModel())
	if health != "" {
		d.printf("%s %s\n", d.st.muted.Render("Serveur :"), health)
	}
	if d.micOff != "" {
		d.printf("%s %s\n", d.st.muted.Render("Micro :"), d.micOff)
	}
	d.printf("%s\n\n", d.st.muted.Render("Commandes : /help | /history | /mic | /speak N | /model | /clear | /exit"))
}

// PrintHelp lists the commands
func (d *Display) PrintHelp() {
	d.PrintSeparator()
	for _, line := range helpLines {
		d.printf("  %-14s %s\n", line[0], d.st.muted.Render(line[1]))
	}
	d.printf("\n%s\n", d.st.muted.Render(`Terminez une ligne par \ pour continuer la question à la ligne suivante.`))
	d.PrintSeparator()
}

var helpLines = [][2]string{
	{"/history", "afficher l'historique"},
	{"/view N", "réafficher l'échange N"},
	{"/replay N", "recharger la question N"},
	{"/clear", "effacer l'historique"},
	{"/mic", "démarrer ou arrêter la dictée"},
	{"/speak N", "lire ou arrêter la réponse N"},
	{"/model [nom]", "afficher ou choisir le modèle"},
	{"/exit", "quitter"},
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	d.printf("%s\n", d.st.muted.Render(strings.Repeat("─", min(d.width, 80))))
}

// AppendMessage adds a message to the transcript
func (d *Display) AppendMessage(msg render.Message) {
	if msg.Role == render.RoleUser {
		d.printf("\n%s\n", d.st.user.Render("┌─ Vous · "+d.now().Format("15:04:05")))
		for _, line := range strings.Split(msg.Text, "\n") {
			d.printf("%s %s\n", d.st.user.Render("│"), line)
		}
		d.printf("%s\n", d.st.user.Render("└"))
		return
	}

	d.assistant = append(d.assistant, msg)
	n := len(d.assistant)

	header := fmt.Sprintf("┌─ Assistant #%d · %s", n, d.now().Format("15:04:05"))
	if d.elapsed > 0 {
		header += " · " + formatDuration(d.elapsed)
		d.elapsed = 0
	}
	bar := d.st.assistant.Render("│")
	d.printf("\n%s\n", d.st.assistant.Render(header))
	for _, line := range strings.Split(d.renderAnswer(msg.Text), "\n") {
		d.printf("%s %s\n", bar, line)
	}

	if lines := msg.SourceLines(); len(lines) > 0 {
		d.printf("%s\n%s %s\n", bar, bar, d.st.muted.Render(SourcesTitle))
		for i, line := range lines {
			d.printf("%s   %d. %s\n", bar, i+1, d.st.muted.Render(line))
		}
	}
	if msg.Speakable {
		d.printf("%s\n%s %s\n", bar, bar, d.st.muted.Render(fmt.Sprintf("🔊 /speak %d", n)))
	}
	d.printf("%s\n", d.st.assistant.Render("└"))
}

func (d *Display) renderAnswer(text string) string {
	if d.renderer == nil {
		return text
	}
	rendered, err := d.renderer.Render(hardBreaks(text))
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

// hardBreaks keeps the answer's line structure through markdown rendering.
func hardBreaks(text string) string {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines)-1; i++ {
		if lines[i] != "" && lines[i+1] != "" {
			lines[i] += "  "
		}
	}
	return strings.Join(lines, "\n")
}

// AssistantMessage returns assistant message n (1-based) and its playback control
func (d *Display) AssistantMessage(n int) (render.Message, string, bool) {
	if n < 1 || n > len(d.assistant) {
		return render.Message{}, "", false
	}
	return d.assistant[n-1], SpeakButton(n), true
}

// SpeakButton names the playback control of assistant message n
func SpeakButton(n int) string {
	return fmt.Sprintf("msg-%d", n)
}

// Input returns the draft question.
func (d *Display) Input() string { return d.draft }

// SetInput replaces the draft question.
func (d *Display) SetInput(text string) { d.draft = text }

// ClearInput empties the draft question.
func (d *Display) ClearInput() { d.draft = "" }

// FocusInput shows the prompt with the current draft
func (d *Display) FocusInput() {
	if d.draft != "" {
		d.printf("%s %s\n", d.st.muted.Render("✎ Brouillon :"), d.draft)
		d.printf("%s\n", d.st.muted.Render("  Entrée pour envoyer, ou complétez la question."))
	}
	d.printf("\n%s ", d.st.prompt.Render("❯"))
}

// SetBusy enables or disables the input controls
func (d *Display) SetBusy(busy bool) { d.busy = busy }

// Busy reports whether a request is in flight.
func (d *Display) Busy() bool { return d.busy }

// ShowLoading inserts the loading indicator
func (d *Display) ShowLoading() {
	d.loadingSince = d.now()
	if !d.animate {
		d.printf("%s\n", d.st.muted.Render("⏳ "+LoadingLabel))
		return
	}

	d.stopSpinner()
	stop := make(chan struct{})
	done := make(chan struct{})
	d.spinStop, d.spinDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinnerFrames) {
			d.printf("\r%s", d.st.info.Render(spinnerFrames[i]+" "+LoadingLabel))
			select {
			case <-stop:
				// Clear the spinner line
				d.printf("\r\033[2K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// HideLoading removes the loading indicator
func (d *Display) HideLoading() {
	d.stopSpinner()
	if !d.loadingSince.IsZero() {
		d.elapsed = d.now().Sub(d.loadingSince)
		d.loadingSince = time.Time{}
	}
}

func (d *Display) stopSpinner() {
	if d.spinStop == nil {
		return
	}
	close(d.spinStop)
	<-d.spinDone
	d.spinStop, d.spinDone = nil, nil
}

// SelectedModel returns the model chosen in the selector
func (d *Display) SelectedModel() string { return d.model }

// Models returns the selector choices
func (d *Display) Models() []string { return d.models }

// SetModel selects name. It fails while busy or for a name outside the
// configured list, when there is one.
func (d *Display) SetModel(name string) bool {
	if d.busy {
		return false
	}
	if len(d.models) > 0 && !contains(d.models, name) {
		return false
	}
	d.model = name
	return true
}

// PrintModels shows the selector
func (d *Display) PrintModels() {
	for _, m := range d.models {
		marker := " "
		if m == d.model {
			marker = "●"
		}
		d.printf("  %s %s\n", marker, m)
	}
	if !contains(d.models, d.model) {
		d.printf("  ● %s\n", d.model)
	}
}

// SetMicState projects the dictation state onto the mic control
func (d *Display) SetMicState(s voice.State) {
	d.listening = s == voice.Listening
	if d.listening {
		d.printf("%s\n", d.st.info.Render("🎤 Écoute en cours. /mic pour arrêter."))
		return
	}
	d.printf("%s\n", d.st.muted.Render("🎤 Dictée terminée."))
}

// DisableMic disables the mic control for the session
func (d *Display) DisableMic(label string) { d.micOff = label }

// MicDisabled returns the disabled label, empty when the mic works.
func (d *Display) MicDisabled() string { return d.micOff }

// Listening reports whether the mic control shows an active dictation.
func (d *Display) Listening() bool { return d.listening }

// SetSpeechState projects playback onto a message's control
func (d *Display) SetSpeechState(button string, s speech.State) {
	n := strings.TrimPrefix(button, "msg-")
	if s == speech.Playing {
		d.playing = button
		d.printf("%s\n", d.st.info.Render("🔊 Lecture de la réponse #"+n+". /speak "+n+" pour arrêter."))
		return
	}
	if d.playing == button {
		d.playing = ""
	}
	d.printf("%s\n", d.st.muted.Render("⏹ Lecture de la réponse #"+n+" terminée."))
}

// PlayingButton returns the control currently playing, empty when none.
func (d *Display) PlayingButton() string { return d.playing }

// RefreshHistory receives the new history list after every change
func (d *Display) RefreshHistory(entries []history.Entry) {
	d.entries = entries
}

// PrintHistory displays the history panel
func (d *Display) PrintHistory() {
	if len(d.entries) == 0 {
		d.PrintInfo(EmptyHistory)
		return
	}
	d.PrintSeparator()
	d.printf("%s\n", d.st.header.Render(fmt.Sprintf("Historique (%d)", len(d.entries))))
	for i, e := range d.entries {
		d.printf("%3d. %s %s\n", i+1, d.st.muted.Render(formatTimestamp(e.Timestamp)), truncate(firstLine(e.Question), d.width-24))
	}
	d.printf("%s\n", d.st.muted.Render("/view N pour réafficher, /replay N pour reposer la question."))
	d.PrintSeparator()
}

// Confirm prints a yes/no question; the answer arrives as the next line
func (d *Display) Confirm(question string) {
	d.printf("%s %s ", d.st.warn.Render(question), d.st.muted.Render("[o/N]"))
}

// Notify shows a transient notice
func (d *Display) Notify(msg string) {
	d.PrintWarning(msg)
}

// PrintInfo displays info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%s\n", d.st.info.Render("ℹ "+msg))
}

// PrintWarning displays warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s\n", d.st.warn.Render("⚠ "+msg))
}

// PrintError displays error message
func (d *Display) PrintError(err error) {
	d.printf("%s\n", d.st.err.Render("✗ Erreur : "+err.Error()))
}

// PrintSuccess displays success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s\n", d.st.success.Render("✓ "+msg))
}

// PrintGoodbye displays goodbye message
func (d *Display) PrintGoodbye() {
	d.printf("\n%s\n", d.st.header.Render("Au revoir !"))
}

// Close stops the spinner if it is still running
func (d *Display) Close() {
	d.stopSpinner()
}

// Helper functions

func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("02/01 15:04")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
