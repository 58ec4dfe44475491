// Package session runs the question lifecycle: one request in flight at a
// time, optimistic user message, loading state and the final cleanup that
// always returns the view to an interactive state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"burkina-qa/internal/askapi"
	"burkina-qa/internal/eventloop"
	"burkina-qa/internal/history"
	"burkina-qa/internal/render"
	"burkina-qa/internal/state"
)

// Request defaults
const (
	DefaultTopK           = 4
	DefaultScoreThreshold = 0.4
	DefaultTimeout        = 240
	FallbackModel         = "qwen2.5:7b-instruct"
)

// ErrorPrefix starts every failure message shown in the transcript
const ErrorPrefix = "Erreur : "

var errEmptyResponse = errors.New("réponse vide du serveur")

// Backend is the question-answering service
type Backend interface {
	Ask(ctx context.Context, req askapi.AskRequest) (*askapi.AskResponse, error)
}

// View is the part of the page the lifecycle drives
type View interface {
	AppendMessage(msg render.Message)
	ClearInput()
	FocusInput()
	SetBusy(busy bool)
	ShowLoading()
	HideLoading()
	SelectedModel() string
}

// Dictation is stopped before a request starts
type Dictation interface {
	Stop()
}

// Playback is canceled before a request starts
type Playback interface {
	Cancel()
	Available() bool
}

// History records successful exchanges
type History interface {
	Append(question, answer string, sources []askapi.Source) history.Entry
}

// Options tunes the request sent for every question
type Options struct {
	TopK           int
	ScoreThreshold float64
	Normalize      bool
	Timeout        int
	FallbackModel  string
}

// DefaultOptions returns the service defaults
func DefaultOptions() Options {
	return Options{
		TopK:           DefaultTopK,
		ScoreThreshold: DefaultScoreThreshold,
		Normalize:      true,
		Timeout:        DefaultTimeout,
		FallbackModel:  FallbackModel,
	}
}

// Controller owns the submit lifecycle. Loop-confined: Submit must run on the
// dispatcher's goroutine, and the backend result is posted back to it.
type Controller struct {
	ctx        context.Context
	backend    Backend
	dispatcher eventloop.Dispatcher
	session    *state.Session
	view       View
	dictation  Dictation
	playback   Playback
	history    History
	opts       Options
	logger     *slog.Logger
}

// Deps groups the collaborators of a Controller
type Deps struct {
	Backend    Backend
	Dispatcher eventloop.Dispatcher
	Session    *state.Session
	View       View
	Dictation  Dictation
	Playback   Playback
	History    History
	Logger     *slog.Logger
}

// NewController creates a controller. Requests are bound to ctx, so
// canceling it aborts the one in flight.
func NewController(ctx context.Context, deps Deps, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FallbackModel == "" {
		opts.FallbackModel = FallbackModel
	}
	return &Controller{
		ctx:        ctx,
		backend:    deps.Backend,
		dispatcher: deps.Dispatcher,
		session:    deps.Session,
		view:       deps.View,
		dictation:  deps.Dictation,
		playback:   deps.Playback,
		history:    deps.History,
		opts:       opts,
		logger:     logger.With("component", "session"),
	}
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool { return c.session.PendingRequestInFlight }

// Submit sends raw as a question. It returns false when the text is blank or
// a request is already in flight.
func (c *Controller) Submit(raw string) bool {
	question := strings.TrimSpace(raw)
	if question == "" {
		return false
	}
	if c.session.PendingRequestInFlight {
		c.logger.Debug("submit ignored, request in flight")
		return false
	}

	if c.dictation != nil {
		c.dictation.Stop()
	}
	if c.playback != nil {
		c.playback.Cancel()
	}

	c.view.AppendMessage(render.Render(render.RoleUser, question, nil, false))
	c.view.ClearInput()
	c.session.PendingRequestInFlight = true
	c.view.SetBusy(true)
	c.view.ShowLoading()

	req := c.buildRequest(question)
	go func() {
		resp, err := c.backend.Ask(c.ctx, req)
		if !c.dispatcher.Post(func() { c.settle(question, resp, err) }) {
			c.logger.Debug("answer dropped, loop stopped")
		}
	}()
	return true
}

func (c *Controller) buildRequest(question string) askapi.AskRequest {
	model := strings.TrimSpace(c.view.SelectedModel())
	if model == "" {
		model = c.opts.FallbackModel
	}
	return askapi.AskRequest{
		Question:       question,
		TopK:           c.opts.TopK,
		ScoreThreshold: c.opts.ScoreThreshold,
		Normalize:      c.opts.Normalize,
		Timeout:        c.opts.Timeout,
		Model:          model,
	}
}

func (c *Controller) settle(question string, resp *askapi.AskResponse, err error) {
	defer c.finish()

	c.view.HideLoading()
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.logger.Warn("question failed", "error", err)
		c.view.AppendMessage(render.Render(render.RoleAssistant, ErrorPrefix+err.Error(), nil, false))
		return
	}

	msg := render.Render(render.RoleAssistant, resp.Answer, resp.Sources, c.canSpeak())
	c.view.AppendMessage(msg)
	c.history.Append(question, msg.Text, resp.Sources)
}

func (c *Controller) finish() {
	c.session.PendingRequestInFlight = false
	c.view.SetBusy(false)
	c.view.FocusInput()
}

func (c *Controller) canSpeak() bool {
	return c.playback != nil && c.playback.Available()
}
