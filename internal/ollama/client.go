// Package ollama lists the generation models installed on the Ollama server
// behind the question-answering API, to fill the model selector.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Model is an installed model
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// Client handles communication with Ollama
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Ollama client
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger.With("component", "ollama"),
	}
}

// ListModels returns the installed models
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama is unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	c.logger.Debug("models listed", "count", len(result.Models))
	return result.Models, nil
}

// Selectable builds the selector choices: the installed models when any are
// known, otherwise the configured list. The current model always appears.
func Selectable(installed []Model, configured []string, current string) []string {
	var names []string
	if len(installed) > 0 {
		for _, m := range installed {
			names = append(names, m.Name)
		}
	} else {
		names = append(names, configured...)
	}
	for _, n := range names {
		if n == current {
			return names
		}
	}
	if current != "" {
		names = append([]string{current}, names...)
	}
	return names
}
