package askapi

import "strings"

// UnknownSource labels a hit whose payload names neither a URL nor a file.
const UnknownSource = "source inconnue"

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question       string  `json:"question"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	Normalize      bool    `json:"normalize"`
	Timeout        int     `json:"timeout"` // seconds, enforced by the server
	Model          string  `json:"ollama_model,omitempty"`
}

// AskResponse is the answer returned by the backend
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is one retrieved document backing an answer
type Source struct {
	Source  string         `json:"source"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
}

// Label picks the display name of a source: payload url, then payload
// file_name, then UnknownSource.
func (s Source) Label() string {
	for _, key := range []string{"url", "file_name"} {
		if v, ok := s.Payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return UnknownSource
}

// Normalized returns a copy whose Source field holds Label().
func (s Source) Normalized() Source {
	s.Source = s.Label()
	return s
}

// NormalizeSources normalizes every source of the slice into a new slice.
func NormalizeSources(sources []Source) []Source {
	out := make([]Source, len(sources))
	for i, src := range sources {
		out[i] = src.Normalized()
	}
	return out
}
