package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"burkina-qa/internal/app"
	"burkina-qa/internal/askapi"
	"burkina-qa/internal/config"
	"burkina-qa/internal/eventloop"
	"burkina-qa/internal/history"
	"burkina-qa/internal/ollama"
	"burkina-qa/internal/session"
	"burkina-qa/internal/speech"
	"burkina-qa/internal/storage"
	"burkina-qa/internal/terminal"
	"burkina-qa/internal/ui"
	"burkina-qa/internal/voice"
)

func main() {
	// Set the GetEnv function for config
	config.GetEnv = os.Getenv

	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags loads the config file, then applies command-line overrides
func parseFlags() (*config.Config, error) {
	configPath := flag.String("config", config.DefaultPath(), "Configuration file (TOML)")
	apiURL := flag.String("api-url", "", "Question-answering API URL")
	model := flag.String("model", "", "Generation model name")
	backend := flag.String("storage", "", "History storage backend: file or sqlite")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	noVoice := flag.Bool("no-voice", false, "Disable dictation and speech")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *noVoice {
		cfg.Voice = config.VoiceConfig{}
	}
	return cfg, nil
}

// setupLogger writes structured logs to the configured file so the
// terminal stays readable
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
}

type kvStore interface {
	history.Storage
	Close() error
}

func openStorage(cfg *config.Config) (kvStore, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if cfg.Storage.Backend == config.StorageSQLite {
		return storage.NewSQLiteStore(cfg.SQLitePath())
	}
	return storage.NewFileStore(cfg.Storage.Dir)
}

// selectableModels asks Ollama for the installed models when configured
func selectableModels(ctx context.Context, cfg *config.Config, logger *slog.Logger) []string {
	var installed []ollama.Model
	if cfg.OllamaURL != "" {
		models, err := ollama.NewClient(cfg.OllamaURL, logger).ListModels(ctx)
		if err != nil {
			logger.Warn("model list unavailable, using configured models", "error", err)
		}
		installed = models
	}
	return ollama.Selectable(installed, cfg.Models, cfg.Model)
}

// capabilities returns nil interfaces for the programs that are missing.
func capabilities(cfg *config.Config, logger *slog.Logger) (voice.Dictation, speech.Synthesizer) {
	var dictation voice.Dictation
	if d, err := voice.NewCommandDictation(cfg.Voice.DictationCommand); err != nil {
		logger.Info("dictation disabled", "reason", err)
	} else {
		dictation = d
	}

	var synth speech.Synthesizer
	if s, err := speech.NewCommandSynthesizer(cfg.Voice.SpeechCommand); err != nil {
		logger.Info("speech disabled", "reason", err)
	} else {
		synth = s
	}
	return dictation, synth
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tty := terminal.IsTerminal(os.Stdout)
	display := ui.New(os.Stdout, ui.Options{
		Width:    terminal.Width(os.Stdout),
		Markdown: tty,
		Animate:  tty,
		Models:   selectableModels(ctx, cfg, logger),
		Model:    cfg.Model,
	})

	client := askapi.NewClient(cfg.APIURL, logger)
	dictation, synth := capabilities(cfg, logger)
	reader := terminal.NewReader(os.Stdin)
	loop := eventloop.New()

	a := app.New(ctx, app.Deps{
		Loop:        loop,
		Display:     display,
		Backend:     client,
		Storage:     store,
		Dictation:   dictation,
		Synthesizer: synth,
		Options: session.Options{
			TopK:           cfg.Request.TopK,
			ScoreThreshold: cfg.Request.ScoreThreshold,
			Normalize:      cfg.Request.Normalize,
			Timeout:        cfg.Request.Timeout,
			FallbackModel:  session.FallbackModel,
		},
		Logger: logger,
		// Runs on the loop while the input goroutine waits in loop.Do,
		// so reading the next line here does not race with it.
		Confirm: func(question string) bool {
			display.Confirm(question)
			answer, err := reader.ReadLine()
			if err != nil {
				return false
			}
			return terminal.IsYes(answer)
		},
		Quit: cancel,
	})

	// Health check (non-fatal)
	health := "indisponible"
	if h, err := client.HealthCheck(ctx); err != nil {
		logger.Warn("health check failed", "error", err)
		display.PrintWarning(fmt.Sprintf("Serveur injoignable : %v", err))
	} else {
		health = fmt.Sprintf("%s (collection %s)", h.Status, h.Collection)
		logger.Info("backend healthy", "status", h.Status, "collection", h.Collection)
	}

	display.PrintWelcome(health)
	display.FocusInput()

	a.ForwardEvents(ctx)
	go readInput(reader, loop, a, cancel)

	logger.Info("client started", "api_url", cfg.APIURL, "storage", cfg.Storage.Backend)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	a.Shutdown()
	display.PrintGoodbye()
	logger.Info("client stopped")
	return nil
}

// readInput feeds each line to the loop and waits for it to be handled
func readInput(reader *terminal.Reader, loop *eventloop.Loop, a *app.App, quit func()) {
	for {
		line, err := reader.ReadLine()
		if err != nil {
			quit()
			return
		}
		if err := loop.Do(func() { a.HandleLine(line) }); err != nil {
			return
		}
	}
}
