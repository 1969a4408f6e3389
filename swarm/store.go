// Package swarm provides the typed domain API over the generic memory
// store: agent records, task lifecycles, inter-agent communication logs,
// consensus decisions, learned patterns, and coordination state.
package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

// Namespaces used by the domain layer. Partition routing uses the same
// names as types.
const (
	nsAgents       = "agents"
	nsTasks        = "tasks"
	nsComms        = "communications"
	nsConsensus    = "consensus"
	nsPatterns     = "patterns"
	nsCoordination = "coordination"
	nsMetrics      = "metrics"
	nsEntries      = "swarm"
	nsKnowledge    = "knowledge"
)

// defaultCommTTL bounds communication log retention when the partition has
// no explicit default.
const defaultCommTTL = 24 * time.Hour

// Store is the typed swarm layer. All records flow through the generic
// Store API; values cross the serialization boundary via the manager's
// configured codec.
type Store struct {
	mgr    *memory.Manager
	codec  memory.Codec
	logger memory.Logger

	commTTL time.Duration
}

// New creates a swarm store over an initialized manager.
func New(mgr *memory.Manager) *Store {
	return &Store{
		mgr:     mgr,
		codec:   mgr.Codec(),
		logger:  mgr.Logger(),
		commTTL: defaultCommTTL,
	}
}

// Setup creates the domain partitions. Safe to call repeatedly; existing
// partitions are kept.
func (s *Store) Setup(ctx context.Context) error {
	partitions := []struct {
		name string
		opts memory.PartitionOptions
	}{
		{nsAgents, memory.PartitionOptions{Indexed: true}},
		{nsTasks, memory.PartitionOptions{Indexed: true}},
		{nsComms, memory.PartitionOptions{DefaultTTL: s.commTTL}},
		{nsConsensus, memory.PartitionOptions{Shared: true}},
		{nsPatterns, memory.PartitionOptions{Indexed: true, Shared: true}},
		{nsCoordination, memory.PartitionOptions{Shared: true}},
		{nsMetrics, memory.PartitionOptions{DefaultTTL: 7 * 24 * time.Hour}},
		{nsEntries, memory.PartitionOptions{Indexed: true}},
		{nsKnowledge, memory.PartitionOptions{Shared: true, Compressed: true}},
	}
	for _, p := range partitions {
		if _, err := s.mgr.CreatePartition(p.name, p.name, p.opts); err != nil &&
			!errors.Is(err, memory.ErrPartitionExists) {
			return err
		}
	}
	return nil
}

// put encodes a record and stores it under (key, namespace).
func (s *Store) put(ctx context.Context, key, namespace string, record interface{}, opts *memory.StoreOptions) error {
	data, err := s.codec.Encode(record)
	if err != nil {
		return memory.OpError("swarm.put", "codec", key, err)
	}
	if opts == nil {
		opts = &memory.StoreOptions{}
	}
	opts.Namespace = namespace
	if opts.Type == "" {
		opts.Type = namespace
	}
	_, err = s.mgr.Store(ctx, key, data, opts)
	return err
}

// get decodes the record stored at (key, namespace) into out, reporting
// presence.
func (s *Store) get(ctx context.Context, key, namespace string, out interface{}) (bool, error) {
	data, err := s.mgr.Retrieve(ctx, key, namespace)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := s.codec.Decode(data, out); err != nil {
		return false, memory.OpError("swarm.get", "codec", key, err)
	}
	return true, nil
}

// decodeAll decodes a query result set into typed records, skipping
// undecodable rows.
func decodeAll[T any](s *Store, entries []*memory.Entry) []*T {
	out := make([]*T, 0, len(entries))
	for _, e := range entries {
		value := e.Value
		if e.Compressed {
			raw, err := s.mgr.Retrieve(context.Background(), e.Key, e.Namespace)
			if err != nil || raw == nil {
				continue
			}
			value = raw
		}
		record := new(T)
		if err := s.codec.Decode(value, record); err != nil {
			s.logger.Debug("Skipping undecodable record", map[string]interface{}{
				"key":       e.Key,
				"namespace": e.Namespace,
				"error":     err.Error(),
			})
			continue
		}
		out = append(out, record)
	}
	return out
}

func agentKey(id string) string { return "agent:" + id }
func taskKey(id string) string  { return "task:" + id }

// StoreAgent registers or refreshes an agent record.
func (s *Store) StoreAgent(ctx context.Context, agent *Agent) error {
	if agent == nil || agent.ID == "" {
		return memory.OpError("swarm.StoreAgent", "agent", "", memory.ErrInvalidEntry)
	}
	if agent.Status == "" {
		agent.Status = AgentActive
	}
	if agent.LastHeartbeat.IsZero() {
		agent.LastHeartbeat = time.Now()
	}
	return s.put(ctx, agentKey(agent.ID), nsAgents, agent, &memory.StoreOptions{
		Owner:       agent.ID,
		AccessLevel: memory.AccessTeam,
		Tags:        agent.Capabilities,
	})
}

// GetAgent returns the agent record, or nil when unknown.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	agent := &Agent{}
	ok, err := s.get(ctx, agentKey(id), nsAgents, agent)
	if err != nil || !ok {
		return nil, err
	}
	return agent, nil
}

// ListAgents returns agents matching the filter.
func (s *Store) ListAgents(ctx context.Context, filter AgentFilter) ([]*Agent, error) {
	entries, err := s.mgr.Query(ctx, memory.QueryFilter{Namespace: nsAgents})
	if err != nil {
		return nil, err
	}
	agents := decodeAll[Agent](s, entries)

	out := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Capability != "" && !hasCapability(a, filter.Capability) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func hasCapability(a *Agent, capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// AgentHeartbeat refreshes an agent's liveness timestamp and status.
func (s *Store) AgentHeartbeat(ctx context.Context, id string, status AgentStatus) error {
	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if agent == nil {
		return memory.OpError("swarm.AgentHeartbeat", "agent", id, memory.ErrNotFound)
	}
	agent.LastHeartbeat = time.Now()
	if status != "" {
		agent.Status = status
	}
	return s.StoreAgent(ctx, agent)
}

// StoreTask records a task. New tasks default to pending.
func (s *Store) StoreTask(ctx context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return memory.OpError("swarm.StoreTask", "task", "", memory.ErrInvalidEntry)
	}
	if task.Status == "" {
		task.Status = TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	return s.put(ctx, taskKey(task.ID), nsTasks, task, &memory.StoreOptions{
		Owner:       task.AssignedTo,
		AccessLevel: memory.AccessTeam,
		Metadata:    map[string]string{"status": string(task.Status)},
	})
}

// GetTask returns the task record, or nil when unknown.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	task := &Task{}
	ok, err := s.get(ctx, taskKey(id), nsTasks, task)
	if err != nil || !ok {
		return nil, err
	}
	return task, nil
}

// TaskUpdate carries the optional payload of a status transition.
type TaskUpdate struct {
	Output json.RawMessage
	Error  string
}

// UpdateTaskStatus transitions a task through its lifecycle. Invalid
// transitions are rejected; completion stamps CompletedAt and records the
// output.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, update *TaskUpdate) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return memory.OpError("swarm.UpdateTaskStatus", "task", id, memory.ErrNotFound)
	}
	if !task.Status.CanTransition(status) {
		return memory.OpError("swarm.UpdateTaskStatus", "task", id, ErrInvalidTransition)
	}

	now := time.Now()
	task.Status = status
	switch status {
	case TaskInProgress:
		task.StartedAt = &now
	case TaskCompleted:
		task.CompletedAt = &now
		if update != nil {
			task.Output = update.Output
		}
	case TaskFailed:
		task.CompletedAt = &now
		if update != nil {
			task.Error = update.Error
			task.Output = update.Output
		}
	}
	return s.StoreTask(ctx, task)
}

// StoreCommunication appends one message to the inter-agent log. The log is
// append-only: every call creates a new TTL-bounded record.
func (s *Store) StoreCommunication(ctx context.Context, comm *Communication) error {
	if comm == nil || comm.From == "" {
		return memory.OpError("swarm.StoreCommunication", "communication", "", memory.ErrInvalidEntry)
	}
	if comm.ID == "" {
		comm.ID = uuid.NewString()
	}
	if comm.Timestamp.IsZero() {
		comm.Timestamp = time.Now()
	}
	return s.put(ctx, "comm:"+comm.ID, nsComms, comm, &memory.StoreOptions{
		Owner:       comm.From,
		AccessLevel: memory.AccessTeam,
		TTL:         s.commTTL,
		Tags:        []string{comm.From, comm.To},
	})
}

// Communications returns the most recent messages, newest first.
func (s *Store) Communications(ctx context.Context, limit int) ([]*Communication, error) {
	entries, err := s.mgr.Query(ctx, memory.QueryFilter{
		Namespace: nsComms,
		SortBy:    "updatedAt",
		SortOrder: memory.SortDesc,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[Communication](s, entries), nil
}

// StoreConsensus records a swarm decision. Consensus records are preserved
// by cleanup unless explicitly included.
func (s *Store) StoreConsensus(ctx context.Context, c *Consensus) error {
	if c == nil || c.Topic == "" {
		return memory.OpError("swarm.StoreConsensus", "consensus", "", memory.ErrInvalidEntry)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	return s.put(ctx, "consensus:"+c.ID, nsConsensus, c, &memory.StoreOptions{
		AccessLevel: memory.AccessPublic,
		Tags:        []string{c.Topic},
	})
}

// StoreCoordination records a coordination point.
func (s *Store) StoreCoordination(ctx context.Context, c *Coordination) error {
	if c == nil {
		return memory.OpError("swarm.StoreCoordination", "coordination", "", memory.ErrInvalidEntry)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	return s.put(ctx, "coordination:"+c.ID, nsCoordination, c, &memory.StoreOptions{
		AccessLevel: memory.AccessTeam,
		Tags:        c.Agents,
	})
}

// GetCoordination returns a coordination record, or nil when unknown.
func (s *Store) GetCoordination(ctx context.Context, id string) (*Coordination, error) {
	c := &Coordination{}
	ok, err := s.get(ctx, "coordination:"+id, nsCoordination, c)
	if err != nil || !ok {
		return nil, err
	}
	return c, nil
}

// StoreMetrics records a measurement.
func (s *Store) StoreMetrics(ctx context.Context, m *Metric) error {
	if m == nil || m.Name == "" {
		return memory.OpError("swarm.StoreMetrics", "metric", "", memory.ErrInvalidEntry)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return s.put(ctx, "metric:"+m.ID, nsMetrics, m, &memory.StoreOptions{
		Owner: m.AgentID,
		Tags:  []string{m.Name},
	})
}
