// Package history keeps the bounded, most-recent-first list of past exchanges
// and persists it through a key-value Storage. Persistence is best effort:
// failures are logged and never reach the caller.
package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"burkina-qa/internal/askapi"
	"burkina-qa/internal/render"
	"burkina-qa/internal/storage"
)

// Transcript receives messages re-rendered from an entry
type Transcript interface {
	AppendMessage(msg render.Message)
}

// InputField is the pending-question buffer
type InputField interface {
	SetInput(text string)
	FocusInput()
}

// Store is the in-memory history mirrored to Storage. Loop-confined.
type Store struct {
	storage  Storage
	key      string
	entries  []Entry
	lastID   int64
	onChange func([]Entry)
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger used for persistence failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithOnChange registers the history panel refresh
func WithOnChange(fn func([]Entry)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. Call Load to read persisted entries.
func NewStore(st Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		key:     DefaultKey,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "history")
	return s
}

// Load reads the persisted list. Missing, unreadable or corrupt data leaves
// the history empty.
func (s *Store) Load() []Entry {
	s.entries = nil

	data, err := s.storage.Get(s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.logger.Warn("failed to read history, starting empty", "error", err)
	default:
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			s.logger.Warn("corrupt history, starting empty", "error", err)
			break
		}
		for i := range entries {
			entries[i].Sources = askapi.NormalizeSources(entries[i].Sources)
			if entries[i].ID > s.lastID {
				s.lastID = entries[i].ID
			}
		}
		if len(entries) > MaxEntries {
			entries = entries[:MaxEntries]
		}
		s.entries = entries
	}

	s.changed()
	return s.Entries()
}

// Append records a successful exchange at the head of the list, evicting the
// oldest entry beyond MaxEntries, and persists the result.
func (s *Store) Append(question, answer string, sources []askapi.Source) Entry {
	now := s.now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	entry := Entry{
		ID:        id,
		Question:  strings.TrimSpace(question),
		Answer:    answer,
		Sources:   askapi.NormalizeSources(sources),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}

	entries := make([]Entry, 0, len(s.entries)+1)
	entries = append(entries, entry)
	entries = append(entries, s.entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries

	s.persist()
	s.changed()
	return entry
}

// Clear discards every entry once confirm returns true.
func (s *Store) Clear(confirm func() bool) bool {
	if confirm == nil || !confirm() {
		return false
	}
	s.entries = nil
	s.persist()
	s.changed()
	return true
}

// Entries returns a copy of the list, most recent first.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// At returns the n-th entry, 1 being the most recent.
func (s *Store) At(n int) (Entry, bool) {
	if n < 1 || n > len(s.entries) {
		return Entry{}, false
	}
	return s.entries[n-1], true
}

// View re-renders a stored exchange into the transcript without contacting
// the backend: one user message followed by one assistant message.
func (s *Store) View(e Entry, t Transcript, canSpeak bool) {
	t.AppendMessage(render.Render(render.RoleUser, e.Question, nil, false))
	t.AppendMessage(render.Render(render.RoleAssistant, e.Answer, e.Sources, canSpeak))
}

// Replay pre-fills the input with the stored question. The transcript is not touched.
func Replay(e Entry, in InputField) {
	in.SetInput(e.Question)
	in.FocusInput()
}

func (s *Store) persist() {
	data, err := json.Marshal(s.Entries())
	if err != nil {
		s.logger.Error("failed to marshal history", "error", err)
		return
	}
	if err := s.storage.Set(s.key, data); err != nil {
		s.logger.Warn("failed to persist history", "error", err, "entries", len(s.entries))
	}
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange(s.Entries())
	}
}
