// Package auditlog keeps the bounded, append-only record of sync outcomes.
package auditlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stocksync/internal/store"
)

// DefaultCapacity is the number of entries retained.
const DefaultCapacity = 100

// Status is the outcome of a sync operation.
type Status string

const (
	// StatusSuccess marks a completed workflow.
	StatusSuccess Status = "success"
	// StatusError marks a workflow that failed as a whole.
	StatusError Status = "error"
)

// Counts summarises what a workflow did.
type Counts struct {
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Deleted    int `json:"deleted"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
	Duplicates int `json:"duplicates"`
	Warnings   int `json:"warnings"`
}

// Entry is one sync log record.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Status  Status    `json:"status"`
	Details string    `json:"details"`
	Counts  *Counts   `json:"counts,omitempty"`
}

// ErrActionRequired rejects an entry without an action name.
var ErrActionRequired = errors.New("auditlog: action required")

// Log appends entries to the sync_log collection.
type Log struct {
	repo     store.Repository
	capacity int
	now      func() time.Time
	mu       sync.Mutex
}

// New constructs a Log with the default capacity.
func New(repo store.Repository) *Log {
	return &Log{repo: repo, capacity: DefaultCapacity, now: time.Now}
}

// WithCapacity overrides the retained entry count.
func (l *Log) WithCapacity(n int) *Log {
	if n > 0 {
		l.capacity = n
	}
	return l
}

// Append stores an entry, evicting the oldest entries beyond capacity.
func (l *Log) Append(ctx context.Context, entry Entry) (Entry, error) {
	if l == nil {
		return Entry{}, errors.New("auditlog: not initialised")
	}
	if entry.Action == "" {
		return Entry{}, ErrActionRequired
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = l.now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := store.Load[Entry](ctx, l.repo, store.CollectionLog)
	if err != nil {
		return Entry{}, err
	}
	entries = append(entries, entry)
	if over := len(entries) - l.capacity; over > 0 {
		entries = entries[over:]
	}
	if err := store.Save(ctx, l.repo, store.CollectionLog, entries); err != nil {
		return Entry{}, fmt.Errorf("auditlog: append: %w", err)
	}
	return entry, nil
}

// All returns the retained entries in insertion order.
func (l *Log) All(ctx context.Context) ([]Entry, error) {
	return store.Load[Entry](ctx, l.repo, store.CollectionLog)
}

// Recent returns at most n of the newest entries, oldest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	entries, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Entry{}, nil
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
