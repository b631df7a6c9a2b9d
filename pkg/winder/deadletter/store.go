// Package deadletter journals handling failures that would otherwise be lost.
//
// Handler adapts a Store into a winder.ErrorHandler, so it slots into the
// usual error policy chain:
//
//	store, err := deadletter.NewSQLiteStore("./failures.db")
//	if err != nil {
//	    return err
//	}
//	engine := winder.New(winder.WithDefaultErrorHandler(deadletter.Handler(store)))
//
// Entries keep the rendering of the payload, not the payload itself: they are
// for inspection, not replay.
package deadletter

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("dead letter store closed")

	// ErrStoreFull is returned by a bounded store at capacity.
	ErrStoreFull = errors.New("dead letter store full")

	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("dead letter entry not found")
)

// Entry is one recorded handling failure.
type Entry struct {
	ID           string    `json:"id"`
	EventType    string    `json:"event_type"`
	SubscriberID string    `json:"subscriber_id"`
	Error        string    `json:"error"`
	Payload      string    `json:"payload"`
	EmitTime     time.Time `json:"emit_time"`
	FailedAt     time.Time `json:"failed_at"`
}

// Store persists entries.
//
// Implementations must be safe for concurrent use: every failing subscriber
// records from its own goroutine.
type Store interface {
	// Record saves an entry. An empty ID is filled in.
	Record(ctx context.Context, entry *Entry) error

	// List returns up to limit entries, oldest first. An empty eventType
	// matches all types; limit <= 0 means no limit.
	List(ctx context.Context, eventType string, limit int) ([]*Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// CountByType returns counts grouped by event type.
	CountByType(ctx context.Context) (map[string]int, error)

	// Delete removes an entry. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}
