package store

import "fmt"

// Phase is a development lifecycle state. Defined here (rather than only in
// internal/phase) because TeamConfig carries it directly.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhasePreAlpha   Phase = "pre-alpha"
	PhaseAlpha      Phase = "alpha"
	PhaseBeta       Phase = "beta"
	PhaseProduction Phase = "production"
	PhaseMature     Phase = "mature"
)

// Phases lists the lifecycle in forward order.
var Phases = []Phase{PhasePlanning, PhasePreAlpha, PhaseAlpha, PhaseBeta, PhaseProduction, PhaseMature}

func (p Phase) valid() bool {
	for _, candidate := range Phases {
		if candidate == p {
			return true
		}
	}
	return false
}

// MemberStatus is a team member's current activity state.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberIdle      MemberStatus = "idle"
	MemberWorking   MemberStatus = "working"
	MemberBlocked   MemberStatus = "blocked"
	MemberCompleted MemberStatus = "completed"
	MemberFailed    MemberStatus = "failed"
)

// BuiltinRoles are the 23 built-in role names auto-repair can remap onto.
var BuiltinRoles = []string{
	"director", "manager", "product-lead", "senior-engineer", "mid-level-engineer",
	"junior-engineer", "architect", "tech-lead", "qa-engineer", "security-engineer",
	"devops-engineer", "data-engineer", "ml-engineer", "designer", "product-manager",
	"scrum-master", "technical-writer", "support-engineer", "release-manager",
	"site-reliability-engineer", "solutions-architect", "platform-engineer", "intern",
}

// ToolOverrides lets a member widen or narrow its allowed tool set beyond the
// phase-gating table.
type ToolOverrides struct {
	Allowed []string `json:"allowed,omitempty"`
	Blocked []string `json:"blocked,omitempty"`
}

// TeamMember is one agent's membership record within a team.
type TeamMember struct {
	AgentID       string         `json:"agentId"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	AgentType     string         `json:"agentType"`
	Model         string         `json:"model"`
	JoinedAt      int64          `json:"joinedAt"`
	Status        MemberStatus   `json:"status"`
	CurrentTaskID string         `json:"currentTaskId,omitempty"`
	Cwd           string         `json:"cwd,omitempty"`
	ToolOverrides *ToolOverrides `json:"toolOverrides,omitempty"`
}

// TeamSettings holds per-team configuration knobs.
type TeamSettings struct {
	MaxMembers int  `json:"maxMembers"`
	AutoAssign bool `json:"autoAssign"`
}

// TeamConfig is the persisted root record for a team (teams/<name>/config.json).
type TeamConfig struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   int64        `json:"createdAt"`
	LeadAgentID string       `json:"leadAgentId"`
	Phase       Phase        `json:"phase"`
	Members     []TeamMember `json:"members"`
	Settings    TeamSettings `json:"settings"`
}

// Clone returns a deep-enough copy for callers who must not mutate the
// original (transitionPhase, for example, must return a new config).
func (c *TeamConfig) Clone() *TeamConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Members = make([]TeamMember, len(c.Members))
	copy(clone.Members, c.Members)
	return &clone
}

// Validate checks the config's structural invariants: a well-formed name, a
// known phase, and unique member ids and names.
func (c *TeamConfig) Validate() error {
	if err := ValidateTeamName(c.Name); err != nil {
		return err
	}
	if !c.Phase.valid() {
		return &ErrValidation{Message: fmt.Sprintf("unknown phase %q", c.Phase)}
	}

	seenIDs := make(map[string]bool, len(c.Members))
	seenNames := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if err := ValidateMemberName(m.Name); err != nil {
			return err
		}
		if seenIDs[m.AgentID] {
			return &ErrValidation{Message: fmt.Sprintf("duplicate agentId %q", m.AgentID)}
		}
		seenIDs[m.AgentID] = true
		if seenNames[m.Name] {
			return &ErrValidation{Message: fmt.Sprintf("duplicate member name %q", m.Name)}
		}
		seenNames[m.Name] = true
	}
	return nil
}

// TaskStatus is a task's lifecycle state (independent of TeamConfig's Phase).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

// TaskPriority is a task's urgency, defaulting to medium.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// TeamTask is a unit of work tracked under tasks/<team>/<id>.json.
type TeamTask struct {
	ID          string                 `json:"id"`
	Subject     string                 `json:"subject"`
	Description string                 `json:"description"`
	Status      TaskStatus             `json:"status"`
	Priority    TaskPriority           `json:"priority"`
	Owner       string                 `json:"owner,omitempty"`
	BlockedBy   []string               `json:"blockedBy,omitempty"`
	Blocks      []string               `json:"blocks,omitempty"`
	Phase       Phase                  `json:"phase,omitempty"`
	ActiveForm  string                 `json:"activeForm,omitempty"`
	CreatedAt   int64                  `json:"createdAt"`
	UpdatedAt   int64                  `json:"updatedAt"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the per-task invariants (id format and default priority).
// Dangling blockedBy/blocks references are checked at the team level by the
// store since they require looking at sibling tasks.
func (t *TeamTask) Validate() error {
	if err := ValidateTaskID(t.ID); err != nil {
		return err
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	switch t.Priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return &ErrValidation{Message: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	return nil
}
