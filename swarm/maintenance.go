package swarm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

// Default retention ages applied by CleanupData when the options leave them
// zero.
const (
	defaultMaxCommAge = 24 * time.Hour
	defaultMaxTaskAge = 7 * 24 * time.Hour
)

func kbKey(id string) string { return "kb:" + id }

// CreateKnowledgeBase registers a named knowledge base.
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb *KnowledgeBase) error {
	if kb == nil || kb.Name == "" {
		return memory.OpError("swarm.CreateKnowledgeBase", "knowledgeBase", "", memory.ErrInvalidEntry)
	}
	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	kb.Metadata.LastUpdated = time.Now()
	return s.put(ctx, kbKey(kb.ID), nsKnowledge, kb, &memory.StoreOptions{
		AccessLevel: memory.AccessPublic,
		Tags:        []string{kb.Metadata.Domain},
	})
}

// GetKnowledgeBase returns a knowledge base by ID, or nil when unknown.
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{}
	ok, err := s.get(ctx, kbKey(id), nsKnowledge, kb)
	if err != nil || !ok {
		return nil, err
	}
	return kb, nil
}

// AddKnowledge links a swarm entry into a knowledge base and records the
// contributing agent.
func (s *Store) AddKnowledge(ctx context.Context, kbID, entryID string) error {
	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return err
	}
	if kb == nil {
		return memory.OpError("swarm.AddKnowledge", "knowledgeBase", kbID, ErrKnowledgeBaseNotFound)
	}
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return memory.OpError("swarm.AddKnowledge", "entry", entryID, memory.ErrNotFound)
	}

	for _, id := range kb.EntryIDs {
		if id == entryID {
			return nil
		}
	}
	kb.EntryIDs = append(kb.EntryIDs, entryID)
	if entry.AgentID != "" && !contains(kb.Metadata.Contributors, entry.AgentID) {
		kb.Metadata.Contributors = append(kb.Metadata.Contributors, entry.AgentID)
	}
	return s.CreateKnowledgeBase(ctx, kb)
}

// QueryKnowledge returns the entries linked into a knowledge base. Entries
// that have since expired or been deleted are skipped.
func (s *Store) QueryKnowledge(ctx context.Context, kbID string) ([]*Entry, error) {
	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, memory.OpError("swarm.QueryKnowledge", "knowledgeBase", kbID, ErrKnowledgeBaseNotFound)
	}
	out := make([]*Entry, 0, len(kb.EntryIDs))
	for _, id := range kb.EntryIDs {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			out = append(out, entry)
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// SwarmStats summarizes the swarm's current state.
func (s *Store) SwarmStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{TasksByStatus: make(map[TaskStatus]int)}

	agents, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsAgents})
	if err != nil {
		return nil, err
	}
	stats.Agents = len(agents)

	taskEntries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsTasks})
	if err != nil {
		return nil, err
	}
	for _, t := range decodeAll[Task](s, taskEntries) {
		stats.TasksByStatus[t.Status]++
	}

	for ns, dst := range map[string]*int{
		nsComms:     &stats.Communications,
		nsPatterns:  &stats.Patterns,
		nsConsensus: &stats.Consensus,
		nsKnowledge: &stats.KnowledgeBases,
	} {
		entries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: ns})
		if err != nil {
			return nil, err
		}
		*dst = len(entries)
	}

	mstats, err := s.mgr.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalEntries = mstats.Entries
	return stats, nil
}

// ExportState serializes the full swarm state, including knowledge bases,
// into a portable snapshot.
func (s *Store) ExportState(ctx context.Context) (*memory.Snapshot, error) {
	snap, err := s.mgr.Export(ctx)
	if err != nil {
		return nil, err
	}
	kbs, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsKnowledge})
	if err != nil {
		return nil, err
	}
	for _, kb := range decodeAll[KnowledgeBase](s, kbs) {
		raw, err := json.Marshal(kb)
		if err != nil {
			return nil, memory.OpError("swarm.ExportState", "knowledgeBase", kb.ID, err)
		}
		snap.KnowledgeBases = append(snap.KnowledgeBases, raw)
	}
	return snap, nil
}

// ImportState restores a snapshot. Import is idempotent: records already
// present at the same or newer version are kept.
func (s *Store) ImportState(ctx context.Context, snap *memory.Snapshot) error {
	if err := s.mgr.Import(ctx, snap); err != nil {
		return err
	}
	for _, raw := range snap.KnowledgeBases {
		kb := &KnowledgeBase{}
		if err := json.Unmarshal(raw, kb); err != nil {
			s.logger.Warn("Skipping malformed knowledge base in snapshot", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		existing, err := s.GetKnowledgeBase(ctx, kb.ID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Metadata.LastUpdated.Before(kb.Metadata.LastUpdated) {
			continue
		}
		if err := s.CreateKnowledgeBase(ctx, kb); err != nil {
			return err
		}
	}
	return nil
}

// CleanupData removes aged communications and finished tasks, and
// optionally patterns and consensus records. Returns the number of records
// removed.
func (s *Store) CleanupData(ctx context.Context, opts CleanupOptions) (int, error) {
	if opts.MaxCommunicationAge <= 0 {
		opts.MaxCommunicationAge = defaultMaxCommAge
	}
	if opts.MaxTaskAge <= 0 {
		opts.MaxTaskAge = defaultMaxTaskAge
	}
	now := time.Now()
	removed := 0

	comms, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsComms})
	if err != nil {
		return removed, err
	}
	for _, e := range comms {
		if now.Sub(e.UpdatedAt) > opts.MaxCommunicationAge {
			ok, err := s.mgr.Delete(ctx, e.Key, e.Namespace)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
	}

	taskEntries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsTasks})
	if err != nil {
		return removed, err
	}
	for _, e := range taskEntries {
		task := &Task{}
		if err := s.codec.Decode(e.Value, task); err != nil {
			continue
		}
		finished := task.Status == TaskCompleted || task.Status == TaskFailed
		if finished && now.Sub(e.UpdatedAt) > opts.MaxTaskAge {
			ok, err := s.mgr.Delete(ctx, e.Key, e.Namespace)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
	}

	optional := []struct {
		include bool
		ns      string
	}{
		{opts.IncludePatterns, nsPatterns},
		{opts.IncludeConsensus, nsConsensus},
	}
	for _, o := range optional {
		if !o.include {
			continue
		}
		entries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: o.ns})
		if err != nil {
			return removed, err
		}
		for _, e := range entries {
			ok, err := s.mgr.Delete(ctx, e.Key, e.Namespace)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
	}

	s.logger.Info("Swarm cleanup finished", map[string]interface{}{
		"removed": removed,
	})
	return removed, nil
}
