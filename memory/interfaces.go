package memory

import (
	"context"
	"time"
)

// Logger is the minimal structured logging interface used throughout the
// subsystem. Components receive a logger by injection and default to
// NoOpLogger when none is configured.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// NoOpLogger discards all log output.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// Backend is the persistence contract shared by the durable bbolt store and
// the in-memory fallback. Higher layers only ever see this interface; the
// active implementation is selected once during Manager.Initialize.
type Backend interface {
	// Initialize prepares the backend for traffic. For the durable backend
	// this opens the database file and applies pending migrations.
	Initialize(ctx context.Context) error

	// Store persists a new entry. Storing an entry whose (key, namespace)
	// already exists replaces the stored record; uniqueness is enforced here.
	Store(ctx context.Context, entry *Entry) error

	// Retrieve returns the entry with the given ID, or ErrNotFound.
	Retrieve(ctx context.Context, id string) (*Entry, error)

	// RetrieveByKey returns the entry at (key, namespace), or ErrNotFound.
	RetrieveByKey(ctx context.Context, key, namespace string) (*Entry, error)

	// Update replaces an existing entry's stored record, or ErrNotFound.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes the entry with the given ID. Deleting a missing entry
	// returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Query returns all entries matching the filter, sorted and paginated.
	Query(ctx context.Context, filter QueryFilter) ([]*Entry, error)

	// AllEntries returns every stored entry, expired ones included. Used by
	// the GC sweep and by export.
	AllEntries(ctx context.Context) ([]*Entry, error)

	// HealthCheck reports whether the backend can serve traffic.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Codec is the serialization boundary between typed values and the opaque
// payload stored in an entry. Codecs are selected per partition; compressed
// partitions wrap their codec in a compressing codec.
type Codec interface {
	// Name identifies the codec in persisted metadata.
	Name() string
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// ConflictResolver decides between two concurrent versions of an entry.
// The default resolver is last-writer-wins by timestamp; domain-specific
// merges can be plugged in via cluster configuration.
type ConflictResolver interface {
	Resolve(local, remote *Entry) *Entry
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
