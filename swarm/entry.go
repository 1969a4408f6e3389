package swarm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

func entryKey(id string) string { return "entry:" + id }

// accessFor maps a domain share level onto the store's access model.
func accessFor(level ShareLevel) memory.AccessLevel {
	switch level {
	case SharePrivate:
		return memory.AccessPrivate
	case SharePublic:
		return memory.AccessPublic
	default:
		return memory.AccessTeam
	}
}

// StoreEntry records a typed swarm entry. Missing IDs and timestamps are
// filled in; the share level defaults to team.
func (s *Store) StoreEntry(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.AgentID == "" || entry.Type == "" {
		return memory.OpError("swarm.StoreEntry", "entry", "", memory.ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Metadata.ShareLevel == "" {
		entry.Metadata.ShareLevel = ShareTeam
	}
	tags := append([]string{string(entry.Type)}, entry.Metadata.Tags...)
	return s.put(ctx, entryKey(entry.ID), nsEntries, entry, &memory.StoreOptions{
		Type:        string(entry.Type),
		Owner:       entry.AgentID,
		AccessLevel: accessFor(entry.Metadata.ShareLevel),
		Tags:        tags,
	})
}

// GetEntry returns a swarm entry by ID, or nil when unknown.
func (s *Store) GetEntry(ctx context.Context, id string) (*Entry, error) {
	entry := &Entry{}
	ok, err := s.get(ctx, entryKey(id), nsEntries, entry)
	if err != nil || !ok {
		return nil, err
	}
	return entry, nil
}

// EntriesByAgent returns an agent's entries, newest first.
func (s *Store) EntriesByAgent(ctx context.Context, agentID string, limit int) ([]*Entry, error) {
	entries, err := s.mgr.Query(ctx, memory.QueryFilter{
		Namespace: nsEntries,
		Owner:     agentID,
		SortBy:    "updatedAt",
		SortOrder: memory.SortDesc,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[Entry](s, entries), nil
}

// EntriesByType returns entries of one type, newest first.
func (s *Store) EntriesByType(ctx context.Context, typ EntryType, limit int) ([]*Entry, error) {
	entries, err := s.mgr.Query(ctx, memory.QueryFilter{
		Namespace: nsEntries,
		Type:      string(typ),
		SortBy:    "updatedAt",
		SortOrder: memory.SortDesc,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[Entry](s, entries), nil
}
