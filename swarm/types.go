package swarm

import (
	"encoding/json"
	"time"
)

// EntryType classifies a swarm memory entry.
type EntryType string

const (
	EntryKnowledge     EntryType = "knowledge"
	EntryResult        EntryType = "result"
	EntryState         EntryType = "state"
	EntryCommunication EntryType = "communication"
	EntryError         EntryType = "error"
)

// ShareLevel mirrors memory.AccessLevel for domain records.
type ShareLevel string

const (
	SharePrivate ShareLevel = "private"
	ShareTeam    ShareLevel = "team"
	SharePublic  ShareLevel = "public"
)

// Entry is the domain-specific wrapper around a generic store record.
type Entry struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	Type      EntryType       `json:"type"`
	Content   json.RawMessage `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  EntryMetadata   `json:"metadata"`
}

// EntryMetadata carries optional context for a swarm entry.
type EntryMetadata struct {
	TaskID      string     `json:"taskId,omitempty"`
	ObjectiveID string     `json:"objectiveId,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	ShareLevel  ShareLevel `json:"shareLevel"`
	// SourceID back-references the entry this one was shared from.
	SourceID string `json:"sourceId,omitempty"`
}

// AgentStatus describes an agent's lifecycle state.
type AgentStatus string

const (
	AgentActive  AgentStatus = "active"
	AgentIdle    AgentStatus = "idle"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
	AgentFailed  AgentStatus = "failed"
)

// AgentMetrics holds rolling per-agent counters.
type AgentMetrics struct {
	TasksCompleted int64   `json:"tasksCompleted"`
	TasksFailed    int64   `json:"tasksFailed"`
	SuccessRate    float64 `json:"successRate"`
	AvgLatencyMs   float64 `json:"avgLatencyMs"`
}

// Agent is a registered swarm agent record.
type Agent struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Capabilities  []string     `json:"capabilities,omitempty"`
	Status        AgentStatus  `json:"status"`
	LastHeartbeat time.Time    `json:"lastHeartbeat"`
	Metrics       AgentMetrics `json:"metrics"`
}

// AgentFilter selects agents in ListAgents.
type AgentFilter struct {
	Type       string
	Status     AgentStatus
	Capability string
}

// TaskStatus is a task's lifecycle state. Valid transitions are
// pending -> in_progress -> {completed, failed}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// validTaskTransitions maps each status to its allowed successors.
var validTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskCompleted, TaskFailed},
	TaskInProgress: {TaskCompleted, TaskFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range validTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a swarm task record.
type Task struct {
	ID          string            `json:"id"`
	Type        string            `json:"type,omitempty"`
	Description string            `json:"description,omitempty"`
	Status      TaskStatus        `json:"status"`
	Priority    int               `json:"priority,omitempty"`
	AssignedTo  string            `json:"assignedTo,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Output      json.RawMessage   `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Communication is one inter-agent message log record. Communications are
// append-only and TTL-bounded.
type Communication struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      string          `json:"type,omitempty"`
	Content   json.RawMessage `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

// Consensus records a swarm decision.
type Consensus struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Decision  json.RawMessage `json:"decision"`
	Votes     map[string]bool `json:"votes,omitempty"`
	Quorum    float64         `json:"quorum,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Pattern is a learned coordination heuristic, ranked by usage count and an
// exponential-moving-average success rate.
type Pattern struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Context     string    `json:"context,omitempty"`
	Confidence  float64   `json:"confidence"`
	SuccessRate float64   `json:"successRate"`
	UsageCount  int64     `json:"usageCount"`
	LastUsed    time.Time `json:"lastUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Coordination records a multi-agent coordination point.
type Coordination struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	Objective string          `json:"objective,omitempty"`
	Agents    []string        `json:"agents,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Metric is one recorded measurement.
type Metric struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId,omitempty"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KnowledgeBase groups related knowledge entries.
type KnowledgeBase struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	EntryIDs    []string              `json:"entryIds,omitempty"`
	Metadata    KnowledgeBaseMetadata `json:"metadata"`
}

// KnowledgeBaseMetadata describes a knowledge base's domain and provenance.
type KnowledgeBaseMetadata struct {
	Domain       string    `json:"domain,omitempty"`
	Expertise    []string  `json:"expertise,omitempty"`
	Contributors []string  `json:"contributors,omitempty"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Stats summarizes swarm-level state.
type Stats struct {
	Agents         int                `json:"agents"`
	TasksByStatus  map[TaskStatus]int `json:"tasksByStatus"`
	Communications int                `json:"communications"`
	Patterns       int                `json:"patterns"`
	Consensus      int                `json:"consensus"`
	KnowledgeBases int                `json:"knowledgeBases"`
	TotalEntries   int                `json:"totalEntries"`
}

// CleanupOptions controls CleanupData. Zero ages fall back to the store's
// configured defaults; patterns and consensus records are preserved unless
// explicitly included.
type CleanupOptions struct {
	MaxCommunicationAge time.Duration
	MaxTaskAge          time.Duration
	IncludePatterns     bool
	IncludeConsensus    bool
}
