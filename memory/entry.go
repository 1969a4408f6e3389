package memory

import (
	"time"

	"github.com/google/uuid"
)

// AccessLevel governs cross-agent visibility of an entry.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessTeam    AccessLevel = "team"
	AccessPublic  AccessLevel = "public"
)

// Valid reports whether l is one of the known access levels.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessPrivate, AccessTeam, AccessPublic:
		return true
	}
	return false
}

// Entry is a single stored record. (Key, Namespace) is unique: a second
// store at the same pair updates in place and increments Version.
type Entry struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Namespace   string            `json:"namespace"`
	Value       []byte            `json:"value"`
	Type        string            `json:"type"`
	Tags        []string          `json:"tags,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	AccessLevel AccessLevel       `json:"accessLevel"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Partition   string            `json:"partition,omitempty"`

	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	AccessedAt  time.Time     `json:"accessedAt"`
	AccessCount int64         `json:"accessCount"`
	TTL         time.Duration `json:"ttl,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`

	Version    int64 `json:"version"`
	Compressed bool  `json:"compressed"`
	Size       int64 `json:"size"`
}

// NewEntry creates an entry with a fresh ID and timestamps. TTL of zero
// means the entry never expires.
func NewEntry(key, namespace string, value []byte) *Entry {
	now := time.Now()
	e := &Entry{
		ID:          uuid.NewString(),
		Key:         key,
		Namespace:   namespace,
		Value:       value,
		AccessLevel: AccessTeam,
		CreatedAt:   now,
		UpdatedAt:   now,
		AccessedAt:  now,
		Version:     1,
	}
	e.Size = e.EstimateSize()
	return e
}

// Expired reports whether the entry is logically absent at t. The expiry
// instant itself counts as expired.
func (e *Entry) Expired(t time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(t)
}

// Touch records a read access.
func (e *Entry) Touch(t time.Time) {
	e.AccessedAt = t
	e.AccessCount++
}

// SetTTL sets the time-to-live and recomputes ExpiresAt from UpdatedAt.
// A zero ttl clears expiry.
func (e *Entry) SetTTL(ttl time.Duration) {
	e.TTL = ttl
	if ttl <= 0 {
		e.ExpiresAt = nil
		return
	}
	exp := e.UpdatedAt.Add(ttl)
	e.ExpiresAt = &exp
}

// Bump records a mutation: UpdatedAt advances, Version increments, and
// ExpiresAt is recomputed from the (possibly unchanged) TTL.
func (e *Entry) Bump(t time.Time) {
	e.UpdatedAt = t
	e.Version++
	if e.TTL > 0 {
		exp := t.Add(e.TTL)
		e.ExpiresAt = &exp
	}
	e.Size = e.EstimateSize()
}

// entryOverhead approximates the fixed per-entry bookkeeping cost in bytes.
const entryOverhead = 256

// EstimateSize returns a field-length-based size estimate used for cache and
// partition capacity accounting.
func (e *Entry) EstimateSize() int64 {
	size := int64(entryOverhead)
	size += int64(len(e.ID) + len(e.Key) + len(e.Namespace) + len(e.Type) + len(e.Owner))
	size += int64(len(e.Value))
	for _, tag := range e.Tags {
		size += int64(len(tag))
	}
	for k, v := range e.Metadata {
		size += int64(len(k) + len(v))
	}
	return size
}

// Clone returns a deep copy so callers can never mutate cached or stored
// state through a returned pointer.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Value = append([]byte(nil), e.Value...)
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// Partition is a capacity- and policy-bounded logical region of the store.
type Partition struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	MaxSize    int64         `json:"maxSize"`
	DefaultTTL time.Duration `json:"defaultTtl,omitempty"`
	ReadOnly   bool          `json:"readOnly"`
	Shared     bool          `json:"shared"`
	Indexed    bool          `json:"indexed"`
	Compressed bool          `json:"compressed"`
	CreatedAt  time.Time     `json:"createdAt"`

	// UsedSize is the sum of contained entry size estimates. Maintained by
	// the partition registry, not persisted per write.
	UsedSize int64 `json:"usedSize"`
	// EntryCount is the number of contained entries.
	EntryCount int64 `json:"entryCount"`
}

// PartitionOptions configures partition creation.
type PartitionOptions struct {
	MaxSize    int64
	DefaultTTL time.Duration
	ReadOnly   bool
	Shared     bool
	Indexed    bool
	Compressed bool
}

// SortOrder controls query sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryFilter selects entries by exact-match fields, tag intersection, and
// time ranges, with optional nested-field sorting and pagination.
type QueryFilter struct {
	Namespace    string
	Partition    string
	Type         string
	Owner        string
	AccessLevel  AccessLevel
	Tags         []string // entry must carry every listed tag
	CreatedAfter *time.Time
	UpdatedAfter *time.Time

	// SortBy names a field, optionally dotted for metadata access
	// (e.g. "updatedAt", "metadata.priority").
	SortBy    string
	SortOrder SortOrder
	Offset    int
	Limit     int
}

// StoreOptions configures a single Store call.
type StoreOptions struct {
	Namespace   string
	Partition   string
	Type        string
	TTL         time.Duration
	Tags        []string
	Owner       string
	AccessLevel AccessLevel
	Metadata    map[string]string
}

// StoreResult reports the outcome of a Store call.
type StoreResult struct {
	ID      string `json:"id"`
	Size    int64  `json:"size"`
	Version int64  `json:"version"`
	Created bool   `json:"created"` // false when an existing entry was updated
}

// ListOptions configures List.
type ListOptions struct {
	Namespace string
	Limit     int
}

// SearchOptions configures Search. Pattern supports "*" and "?" wildcards;
// a pattern without wildcards matches as a substring.
type SearchOptions struct {
	Pattern   string
	Namespace string
	Tags      []string
	Limit     int
}
