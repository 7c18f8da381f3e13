package memory

import "time"

// AccessLevel is one of the five levels in the ACL lattice (spec.md §3, §4.1).
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessTeam    AccessLevel = "team"
	AccessSwarm   AccessLevel = "swarm"
	AccessPublic  AccessLevel = "public"
	AccessSystem  AccessLevel = "system"
)

// Permission is one of the four grantable operations in granted_permissions.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermShare  Permission = "share"
)

// Entry is a single row in memory_entries.
type Entry struct {
	Key         string
	Partition   string
	Value       string // opaque JSON-encoded payload
	Owner       string
	AccessLevel AccessLevel
	TeamID      string
	SwarmID     string
	CreatedAt   int64
	ExpiresAt   int64 // 0 means never expires
	Metadata    string
}

// StoreOptions configures a store() call.
type StoreOptions struct {
	Partition   string
	TTL         time.Duration
	Owner       string
	AccessLevel AccessLevel
	TeamID      string
	SwarmID     string
	Metadata    string
	// CallerOwner, when non-empty, is checked for write permission against an
	// existing row before the upsert is allowed to overwrite it.
	CallerOwner string
}

// RetrieveOptions configures a retrieve() call.
type RetrieveOptions struct {
	Partition      string
	AgentID        string
	IncludeExpired bool
}

// QueryOptions configures a query() call.
type QueryOptions struct {
	Partition      string
	AgentID        string
	IncludeExpired bool
}

// Hint is an append-only blackboard row.
type Hint struct {
	ID        int64
	Key       string
	Value     string
	CreatedAt int64
	ExpiresAt int64
}

// Event is an immutable stream row.
type Event struct {
	ID        string
	Type      string
	Payload   string
	Timestamp int64
	Source    string
	TTL       int64
	ExpiresAt int64
}

// DefaultEventTTL is the 30-day default TTL for events (spec.md §3).
const DefaultEventTTL = 30 * 24 * time.Hour

// WorkflowStatus is one of the terminal/non-terminal workflow_state statuses.
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
)

// WorkflowState is a row in workflow_state. Never expires.
type WorkflowState struct {
	ID         string
	Step       string
	Status     WorkflowStatus
	Checkpoint string
	SHA        string
	CreatedAt  int64
	UpdatedAt  int64
}

// Pattern is a row in patterns. 7-day TTL.
type Pattern struct {
	ID          string
	Pattern     string
	Confidence  float64
	UsageCount  int
	Metadata    string
	AgentID     string
	Domain      string
	SuccessRate float64
	ExpiresAt   int64
}

// DefaultPatternTTL is the 7-day TTL for patterns.
const DefaultPatternTTL = 7 * 24 * time.Hour

// ProposalStatus is one of the terminal/non-terminal consensus statuses.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a row in consensus_proposals.
type Proposal struct {
	ID        string
	Decision  string
	Proposer  string
	Votes     []string
	Quorum    int
	Status    ProposalStatus
	Version   int
	CreatedAt int64
	ExpiresAt int64
}

// DefaultProposalTTL is the 7-day retention for consensus proposals.
const DefaultProposalTTL = 7 * 24 * time.Hour

// ArtifactKind enumerates manifest kinds.
type ArtifactKind string

const (
	ArtifactCode   ArtifactKind = "code"
	ArtifactDoc    ArtifactKind = "doc"
	ArtifactData   ArtifactKind = "data"
	ArtifactConfig ArtifactKind = "config"
)

// ArtifactManifest is a row in the artifacts table. Never expires.
type ArtifactManifest struct {
	ID              string
	Kind            ArtifactKind
	Path            string
	SHA256          string
	Tags            []string
	Size            int64
	CreatedAt       int64
	PreviousVersion string
}

// SessionMode is swarm or hive-mind.
type SessionMode string

const (
	SessionSwarm    SessionMode = "swarm"
	SessionHiveMind SessionMode = "hive-mind"
)

// Session is a row in sessions.
type Session struct {
	ID          string
	Mode        SessionMode
	State       string
	Checkpoints []string
	CreatedAt   int64
	LastResumed int64
}

// AgentStatus is one of active/idle/terminated.
type AgentStatus string

const (
	AgentActive     AgentStatus = "active"
	AgentIdle       AgentStatus = "idle"
	AgentTerminated AgentStatus = "terminated"
)

// AgentRegistration is a row in agent_registry.
type AgentRegistration struct {
	ID           string
	Type         string
	Capabilities []string
	Status       AgentStatus
	Performance  string // JSON blob, caller-defined shape
	CreatedAt    int64
	UpdatedAt    int64
}

// Goal is a row in goap_goals.
type Goal struct {
	ID         string
	Conditions map[string]interface{}
	Cost       int
	Priority   *int
}

// Action is a row in goap_actions.
type Action struct {
	ID             string
	Preconditions  map[string]interface{}
	Effects        map[string]interface{}
	Cost           int
	AgentType      string
}

// Plan is the serialisable form of a row in goap_plans: action ids only.
type Plan struct {
	ID        string
	GoalID    string
	Sequence  []string
	TotalCost int
}

// OODAPhase is one of observe/orient/decide/act.
type OODAPhase string

const (
	PhaseObserve OODAPhase = "observe"
	PhaseOrient  OODAPhase = "orient"
	PhaseDecide  OODAPhase = "decide"
	PhaseAct     OODAPhase = "act"
)

// OODACycle is a row in ooda_cycles.
type OODACycle struct {
	ID           string
	Phase        OODAPhase
	Observations string
	Orientation  string
	Decision     string
	Action       string
	Timestamp    int64
	Completed    bool
	Result       string
}

// QValue is a row in q_values, unique by (AgentID, StateKey, ActionKey).
type QValue struct {
	AgentID     string
	StateKey    string
	ActionKey   string
	QValue      float64
	UpdateCount int
	LastUpdated int64
}

// Experience is a row in learning_experiences.
type Experience struct {
	ID        int64
	AgentID   string
	TaskID    string
	TaskType  string
	State     string
	Action    string
	Reward    float64
	NextState string
	EpisodeID string
	CreatedAt int64
}

// ACLRow is a row in the acl table.
type ACLRow struct {
	ResourceID         string
	Owner              string
	AccessLevel        AccessLevel
	TeamID             string
	SwarmID            string
	GrantedPermissions map[string][]Permission
	BlockedAgents      []string
	CreatedAt          int64
	UpdatedAt          int64
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
