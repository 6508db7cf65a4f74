// Package phase implements the forward-only team lifecycle and the table
// gating which tools are callable at each phase.
package phase

import (
	"fmt"
	"sort"

	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

// ErrInvalidTransition is raised by TransitionPhase on an illegal move.
type ErrInvalidTransition struct {
	From, To store.Phase
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("Cannot transition from %q to %q. Only forward single-step transitions are allowed.", e.From, e.To)
}

func indexOf(p store.Phase) int {
	for i, candidate := range store.Phases {
		if candidate == p {
			return i
		}
	}
	return -1
}

// CanTransition reports whether next is exactly one step forward of cur.
func CanTransition(cur, next store.Phase) bool {
	ci, ni := indexOf(cur), indexOf(next)
	if ci < 0 || ni < 0 {
		return false
	}
	return ni == ci+1
}

// TransitionPhase returns a new config with phase set to next, leaving the
// original config untouched. Fails with ErrInvalidTransition on an illegal
// move; the caller is responsible for persisting the result via
// store.SaveTeamConfig.
func TransitionPhase(config store.TeamConfig, next store.Phase) (store.TeamConfig, error) {
	if !CanTransition(config.Phase, next) {
		return store.TeamConfig{}, &ErrInvalidTransition{From: config.Phase, To: next}
	}
	result := *config.Clone()
	result.Phase = next
	return result, nil
}

// Tool is a team-scoped tool name gated by the phase table below. Tools not
// in this table are not team-scoped and always pass through
// IsToolAllowedInPhase.
type Tool string

const (
	ToolTaskCreate       Tool = "task_create"
	ToolTaskUpdate       Tool = "task_update"
	ToolTaskGet          Tool = "task_get"
	ToolTaskList         Tool = "task_list"
	ToolSendMessage      Tool = "send_message"
	ToolTeamCreate       Tool = "team_create"
	ToolTeamDelete       Tool = "team_delete"
	ToolSpawnAgents      Tool = "spawn_agents"
	ToolSpawnAgentInline Tool = "spawn_agent_inline"
)

// minPhase is the tool-gating table.
var minPhase = map[Tool]store.Phase{
	ToolTaskCreate:       store.PhasePlanning,
	ToolTaskUpdate:       store.PhasePlanning,
	ToolTaskGet:          store.PhasePlanning,
	ToolTaskList:         store.PhasePlanning,
	ToolSendMessage:      store.PhasePreAlpha,
	ToolTeamCreate:       store.PhasePreAlpha,
	ToolTeamDelete:       store.PhaseAlpha,
	ToolSpawnAgents:      store.PhaseAlpha,
	ToolSpawnAgentInline: store.PhaseAlpha,
}

// IsToolAllowedInPhase returns true if tool is not team-scoped, or if phase
// is at or beyond tool's minimum phase.
func IsToolAllowedInPhase(tool Tool, phase store.Phase) bool {
	required, gated := minPhase[tool]
	if !gated {
		return true
	}
	pi, ri := indexOf(phase), indexOf(required)
	if pi < 0 || ri < 0 {
		return false
	}
	return pi >= ri
}

// GetMinimumPhaseForTool returns the first phase where tool is allowed, or
// "" for non-team tools.
func GetMinimumPhaseForTool(tool Tool) store.Phase {
	required, gated := minPhase[tool]
	if !gated {
		return ""
	}
	return required
}

// GetPhaseTools returns every team-scoped tool allowed at phase. The result
// is superset-monotone in phase order: every tool allowed at an earlier
// phase remains allowed at every later one.
func GetPhaseTools(phase store.Phase) []Tool {
	var tools []Tool
	for tool := range minPhase {
		if IsToolAllowedInPhase(tool, phase) {
			tools = append(tools, tool)
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	return tools
}

// ToolInfo describes one gated tool for registry-style introspection by a
// tool-serving host.
type ToolInfo struct {
	Name     Tool        `json:"name"`
	MinPhase store.Phase `json:"minPhase"`
}

// RegisteredTools lists every team-scoped tool with its minimum phase,
// sorted by name.
func RegisteredTools() []ToolInfo {
	infos := make([]ToolInfo, 0, len(minPhase))
	for tool, min := range minPhase {
		infos = append(infos, ToolInfo{Name: tool, MinPhase: min})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Describe returns tool's registry entry, or (zero, false) for tools that
// are not team-scoped.
func Describe(tool Tool) (ToolInfo, bool) {
	min, gated := minPhase[tool]
	if !gated {
		return ToolInfo{}, false
	}
	return ToolInfo{Name: tool, MinPhase: min}, true
}
