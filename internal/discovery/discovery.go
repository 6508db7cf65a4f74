// Package discovery resolves "which team am I in?" for an agent whose
// process-wide id may have rotated since the team was created, falling back
// through an exact-match, single-team, and last-active-marker chain.
package discovery

import (
	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

// Resolver resolves agent identifiers to teams, read-only over the store.
type Resolver struct {
	store *store.Store
}

// New creates a Resolver backed by s.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// FindCurrentTeam implements the three-step fallback chain: exact match,
// single-team shortcut, last-active marker.
func (r *Resolver) FindCurrentTeam(agentID string) (*store.TeamConfig, error) {
	config, _, err := r.FindCurrentTeamAndAgent(agentID)
	return config, err
}

// FindCurrentTeamAndAgent is FindCurrentTeam plus the resolved member name,
// defaulting to the lead member's name (or "team-lead") when the match came
// from a fallback step rather than an exact agent match.
func (r *Resolver) FindCurrentTeamAndAgent(agentID string) (*store.TeamConfig, string, error) {
	names, err := r.store.Root().ListTeamNames()
	if err != nil {
		return nil, "", err
	}

	// Step 1: exact match.
	for _, name := range names {
		config, err := r.store.LoadTeamConfig(name)
		if err != nil || config == nil {
			continue
		}
		if config.LeadAgentID == "lead-"+agentID {
			return config, leadName(config), nil
		}
		for _, member := range config.Members {
			if member.AgentID == agentID || member.AgentID == "lead-"+agentID {
				return config, member.Name, nil
			}
		}
	}

	// Step 2: single-team shortcut.
	if len(names) == 1 {
		config, err := r.store.LoadTeamConfig(names[0])
		if err != nil {
			return nil, "", err
		}
		if config != nil {
			return config, leadName(config), nil
		}
	}

	// Step 3: last-active marker.
	if last := r.store.LastActiveTeam(); last != "" {
		config, err := r.store.LoadTeamConfig(last)
		if err != nil {
			return nil, "", err
		}
		if config != nil {
			return config, leadName(config), nil
		}
	}

	return nil, "", nil
}

// leadName returns the lead member's name if present among config's
// members, else the literal "team-lead".
func leadName(config *store.TeamConfig) string {
	for _, member := range config.Members {
		if member.AgentID == config.LeadAgentID {
			return member.Name
		}
	}
	return "team-lead"
}
