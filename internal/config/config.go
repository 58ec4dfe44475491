package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Environment overrides
const (
	EnvAPIURL  = "BURKINA_QA_API_URL"
	EnvModel   = "BURKINA_QA_MODEL"
	EnvStorage = "BURKINA_QA_STORAGE"
	EnvOllama  = "BURKINA_QA_OLLAMA_URL"
)

// Config holds all application configuration
type Config struct {
	// Backend settings
	APIURL string   `toml:"api_url"`
	Model  string   `toml:"model"`
	Models []string `toml:"models"`

	// OllamaURL, when set, fills the model selector with the installed models
	OllamaURL string `toml:"ollama_url"`

	Request RequestConfig `toml:"request"`
	Storage StorageConfig `toml:"storage"`
	Voice   VoiceConfig   `toml:"voice"`
	Logging LoggingConfig `toml:"logging"`
}

// RequestConfig tunes every /ask call
type RequestConfig struct {
	TopK           int     `toml:"top_k"`
	ScoreThreshold float64 `toml:"score_threshold"`
	Normalize      bool    `toml:"normalize"`
	Timeout        int     `toml:"timeout"` // seconds, enforced by the server
}

// StorageConfig selects where the history lives
type StorageConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

// VoiceConfig names the dictation and synthesis programs. An empty
// dictation command disables the mic.
type VoiceConfig struct {
	DictationCommand []string `toml:"dictation_command"`
	SpeechCommand    string   `toml:"speech_command"`
}

// LoggingConfig controls the log file
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		APIURL: "http://localhost:8000",
		Model:  "qwen2.5:7b-instruct",
		Models: []string{"qwen2.5:7b-instruct", "llama3.1:8b", "mistral:7b-instruct"},

		Request: RequestConfig{
			TopK:           4,
			ScoreThreshold: 0.4,
			Normalize:      true,
			Timeout:        240,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Dir:     expandHome("~/.burkina-qa"),
		},
		Voice: VoiceConfig{
			SpeechCommand: "espeak-ng",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  expandHome("~/.burkina-qa/client.log"),
		},
	}
}

// DefaultPath is the configuration file read when none is given
func DefaultPath() string {
	return expandHome("~/.burkina-qa/config.toml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg, nil
}

// ApplyEnvOverrides applies BURKINA_QA_* variables
func (c *Config) ApplyEnvOverrides() {
	if v := GetEnv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := GetEnv(EnvModel); v != "" {
		c.Model = v
	}
	if v := GetEnv(EnvStorage); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := GetEnv(EnvOllama); v != "" {
		c.OllamaURL = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api URL cannot be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api URL %q must be an http(s) URL", c.APIURL)
	}
	if c.OllamaURL != "" {
		if u, err := url.Parse(c.OllamaURL); err != nil || u.Host == "" {
			return fmt.Errorf("ollama URL %q is invalid", c.OllamaURL)
		}
	}
	if c.Request.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if c.Request.ScoreThreshold < 0 || c.Request.ScoreThreshold > 1 {
		return fmt.Errorf("score_threshold must be between 0 and 1")
	}
	if c.Request.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second")
	}
	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Storage.Backend, StorageFile, StorageSQLite)
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir cannot be empty")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Logging.Level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}

// SQLitePath is the database used by the sqlite backend
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Storage.Dir, "history.db")
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir := getHomeDir()
		return homeDir + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = func(key string) string {
	// Will be replaced with os.Getenv in main
	return ""
}
