package swarm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

// ShareEntry copies an entry to a target agent. The copy gets a new ID, is
// owned by the target, and back-references the source through
// Metadata.SourceID. Private entries are never shared.
func (s *Store) ShareEntry(ctx context.Context, entryID, targetAgent string) (*Entry, error) {
	if targetAgent == "" {
		return nil, memory.OpError("swarm.ShareEntry", "entry", entryID, memory.ErrInvalidEntry)
	}
	src, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, memory.OpError("swarm.ShareEntry", "entry", entryID, memory.ErrNotFound)
	}
	if src.Metadata.ShareLevel == SharePrivate {
		return nil, memory.OpError("swarm.ShareEntry", "entry", entryID, memory.ErrAccessDenied)
	}

	shared := &Entry{
		ID:        uuid.NewString(),
		AgentID:   targetAgent,
		Type:      src.Type,
		Content:   append([]byte(nil), src.Content...),
		Timestamp: time.Now(),
		Metadata: EntryMetadata{
			TaskID:      src.Metadata.TaskID,
			ObjectiveID: src.Metadata.ObjectiveID,
			Tags:        append([]string(nil), src.Metadata.Tags...),
			Priority:    src.Metadata.Priority,
			ShareLevel:  src.Metadata.ShareLevel,
			SourceID:    src.ID,
		},
	}
	if err := s.StoreEntry(ctx, shared); err != nil {
		return nil, err
	}
	return shared, nil
}

// Broadcast shares an entry with every listed agent, skipping the owner.
// All copies are made or the first failure aborts; copies already written
// stay in place.
func (s *Store) Broadcast(ctx context.Context, entryID string, targets []string) ([]*Entry, error) {
	src, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, memory.OpError("swarm.Broadcast", "entry", entryID, memory.ErrNotFound)
	}
	if src.Metadata.ShareLevel == SharePrivate {
		return nil, memory.OpError("swarm.Broadcast", "entry", entryID, memory.ErrAccessDenied)
	}

	shared := make([]*Entry, 0, len(targets))
	for _, target := range targets {
		if target == "" || target == src.AgentID {
			continue
		}
		dup, err := s.ShareEntry(ctx, entryID, target)
		if err != nil {
			return shared, err
		}
		shared = append(shared, dup)
	}
	return shared, nil
}
