package history

import (
	"burkina-qa/internal/askapi"
)

// MaxEntries is the number of exchanges kept; older ones are evicted
const MaxEntries = 40

// DefaultKey is the storage key holding the serialized list
const DefaultKey = "burkina-qa-history"

// Entry is one persisted exchange. Entries are never mutated once stored.
type Entry struct {
	ID        int64           `json:"id"`       // creation time in ms, strictly increasing
	Question  string          `json:"question"` // trimmed
	Answer    string          `json:"answer"`   // sanitized
	Sources   []askapi.Source `json:"sources"`  // normalized: Source always set
	Timestamp string          `json:"timestamp"`
}

// Storage is the durable key-value backend
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
}
