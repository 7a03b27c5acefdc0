// Package recall provides durable, queryable storage for conversation
// history: every message the agent sends or receives, persisted so it can
// be searched or replayed long after it leaves the working queue.
package recall

import "time"

// Message is a single persisted conversation entry.
type Message struct {
	ID        int64
	Role      string
	Content   string
	Timestamp time.Time
	SummaryID string
	Metadata  map[string]any
}

// Store is the durable conversation history contract.
type Store interface {
	// Append persists a new message and returns its assigned ID. IDs are
	// strictly monotonically increasing.
	Append(role, content string, metadata map[string]any) (int64, error)
	// Recent returns the n most recent messages in chronological
	// (oldest-first) order.
	Recent(n int) ([]Message, error)
	// All returns every stored message in chronological order.
	All() ([]Message, error)
	// Search returns messages whose content contains query as a
	// substring, ordered by timestamp descending (most recent first),
	// paginated by limit/offset.
	Search(query string, limit, offset int) ([]Message, error)
	// Delete removes the message with the given id, reporting whether it
	// existed.
	Delete(id int64) (bool, error)
	// Clear removes every stored message.
	Clear() error
	// Close releases underlying resources.
	Close() error
}
