package storage

// Package storage provides the row-oriented queue and publish-log store.

import (
	"fmt"
	"strings"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/domain"
)

// Store persists queue items and the append-only publish log. The pipeline
// holds no other durable state between runs.
type Store interface {
	Close() error

	// UpsertItem inserts or refreshes a queue row keyed by item ID.
	// Re-discovery of the same URL never creates a second row.
	UpsertItem(item domain.QueueItem) error
	// ItemsByStatus returns rows whose status matches exactly.
	ItemsByStatus(status string) ([]domain.QueueItem, error)
	// PostedTitles returns titles of POSTED rows for a topic, used to seed
	// the dedup working set.
	PostedTitles(topic string) ([]string, error)
	// SetStatus updates one row after its pipeline fully resolves. A POSTED
	// transition records postedAt and clears lastError.
	SetStatus(id, status string, postedAt time.Time, lastError string) error

	// AppendLog appends one publish attempt outcome. Entries are never mutated.
	AppendLog(e domain.PublishLogEntry) error
	// HasPosted reports whether an OK log entry exists for the source URL.
	HasPosted(sourceURL string) (bool, error)
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Close() error                                         { return nil }
func (noopStore) UpsertItem(domain.QueueItem) error                    { return nil }
func (noopStore) ItemsByStatus(string) ([]domain.QueueItem, error)     { return nil, nil }
func (noopStore) PostedTitles(string) ([]string, error)                { return nil, nil }
func (noopStore) SetStatus(string, string, time.Time, string) error    { return nil }
func (noopStore) AppendLog(domain.PublishLogEntry) error               { return nil }
func (noopStore) HasPosted(string) (bool, error)                       { return false, nil }
