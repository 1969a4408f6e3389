package swarm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yte121/openswarm-sub013/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg, err := memory.NewConfig(
		memory.WithInMemoryOnly(),
		memory.WithNamespace("swarm-test"),
		memory.WithFlushInterval(time.Hour),
		memory.WithGCInterval(time.Hour),
	)
	require.NoError(t, err)
	mgr := memory.NewManager(cfg)
	require.NoError(t, mgr.Initialize(context.Background()))
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	s := New(mgr)
	require.NoError(t, s.Setup(context.Background()))
	return s
}

func TestStoreSetupIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Setup(context.Background()))
}

func TestAgentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &Agent{
		ID:           "researcher-1",
		Type:         "researcher",
		Capabilities: []string{"search", "summarize"},
	}
	require.NoError(t, s.StoreAgent(ctx, agent))

	got, err := s.GetAgent(ctx, "researcher-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, AgentActive, got.Status, "status defaults to active")
	assert.False(t, got.LastHeartbeat.IsZero())

	missing, err := s.GetAgent(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.AgentHeartbeat(ctx, "researcher-1", AgentBusy))
	got, err = s.GetAgent(ctx, "researcher-1")
	require.NoError(t, err)
	assert.Equal(t, AgentBusy, got.Status)

	err = s.AgentHeartbeat(ctx, "ghost", AgentIdle)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestListAgentsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*Agent{
		{ID: "r1", Type: "researcher", Status: AgentActive, Capabilities: []string{"search"}},
		{ID: "r2", Type: "researcher", Status: AgentIdle},
		{ID: "c1", Type: "coder", Status: AgentActive, Capabilities: []string{"golang", "search"}},
	}
	for _, a := range seed {
		require.NoError(t, s.StoreAgent(ctx, a))
	}

	tests := []struct {
		name   string
		filter AgentFilter
		ids    []string
	}{
		{"all", AgentFilter{}, []string{"r1", "r2", "c1"}},
		{"by type", AgentFilter{Type: "researcher"}, []string{"r1", "r2"}},
		{"by status", AgentFilter{Status: AgentActive}, []string{"r1", "c1"}},
		{"by capability", AgentFilter{Capability: "search"}, []string{"r1", "c1"}},
		{"combined", AgentFilter{Type: "coder", Capability: "search"}, []string{"c1"}},
		{"none", AgentFilter{Type: "planner"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agents, err := s.ListAgents(ctx, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.ids, agentIDs(agents))
		})
	}
}

func agentIDs(agents []*Agent) []string {
	var ids []string
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &Task{ID: "t1", Description: "index corpus", AssignedTo: "r1"}
	require.NoError(t, s.StoreTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskPending, got.Status)

	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", TaskInProgress, nil))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskInProgress, got.Status)
	require.NotNil(t, got.StartedAt)

	output := json.RawMessage(`{"indexed":1200}`)
	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", TaskCompleted, &TaskUpdate{Output: output}))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.JSONEq(t, string(output), string(got.Output))
}

func TestTaskInvalidTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTask(ctx, &Task{ID: "t1"}))
	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", TaskCompleted, nil))

	// Terminal states accept no further transitions.
	err := s.UpdateTaskStatus(ctx, "t1", TaskInProgress, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = s.UpdateTaskStatus(ctx, "t1", TaskFailed, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = s.UpdateTaskStatus(ctx, "missing", TaskInProgress, nil)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestTaskFailureRecordsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTask(ctx, &Task{ID: "t1"}))
	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", TaskInProgress, nil))
	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", TaskFailed, &TaskUpdate{Error: "tool timeout"}))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "tool timeout", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestCommunicationsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.StoreCommunication(ctx, &Communication{
			From:    "r1",
			To:      "c1",
			Content: json.RawMessage(`{"msg":"ping"}`),
		}))
	}

	comms, err := s.Communications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, comms, 3, "every call appends a new record")

	limited, err := s.Communications(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEntryStoreAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &Entry{
		AgentID: "r1",
		Type:    EntryKnowledge,
		Content: json.RawMessage(`{"fact":"x"}`),
	}
	require.NoError(t, s.StoreEntry(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, ShareTeam, entry.Metadata.ShareLevel, "share level defaults to team")

	got, err := s.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, EntryKnowledge, got.Type)

	byAgent, err := s.EntriesByAgent(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Len(t, byAgent, 1)

	byType, err := s.EntriesByType(ctx, EntryKnowledge, 0)
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	err = s.StoreEntry(ctx, &Entry{Type: EntryKnowledge})
	assert.ErrorIs(t, err, memory.ErrInvalidEntry)
}

func TestConsensusAndCoordination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &Consensus{
		Topic:    "adopt-plan-b",
		Decision: json.RawMessage(`"approved"`),
		Votes:    map[string]bool{"r1": true, "c1": true},
		Quorum:   0.66,
	}
	require.NoError(t, s.StoreConsensus(ctx, c))
	assert.NotEmpty(t, c.ID)

	coord := &Coordination{
		Type:      "handoff",
		Objective: "obj-1",
		Agents:    []string{"r1", "c1"},
	}
	require.NoError(t, s.StoreCoordination(ctx, coord))

	got, err := s.GetCoordination(ctx, coord.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"r1", "c1"}, got.Agents)
}
