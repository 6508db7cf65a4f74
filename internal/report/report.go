// Package report composes human-readable status reports from team store
// state and exposes them over HTTP, plus a websocket hub for live lifecycle
// events.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yethikrishna/levelcode-sub001/internal/maintenance"
	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

// TeamReport is a structured, renderable snapshot of one team.
type TeamReport struct {
	Team   store.TeamConfig    `json:"team"`
	Stats  *maintenance.Stats  `json:"stats"`
	Tasks  []store.TeamTask    `json:"tasks"`
	Issues []maintenance.Issue `json:"issues"`
}

// Reporter composes TeamReports from a team store and its maintainer.
type Reporter struct {
	store *store.Store
	maint *maintenance.Maintainer
}

// New creates a Reporter backed by s.
func New(s *store.Store) *Reporter {
	return &Reporter{store: s, maint: maintenance.New(s)}
}

// BuildReport composes a TeamReport for team, or nil if the team doesn't
// exist.
func (r *Reporter) BuildReport(team string) (*TeamReport, error) {
	config, err := r.store.LoadTeamConfig(team)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, nil
	}

	stats, err := r.maint.GetTeamStats(team)
	if err != nil {
		return nil, err
	}
	tasks, err := r.store.ListTasks(team)
	if err != nil {
		return nil, err
	}
	issues, err := r.maint.ValidateTeamIntegrity(team)
	if err != nil {
		return nil, err
	}

	return &TeamReport{Team: *config, Stats: stats, Tasks: tasks, Issues: issues}, nil
}

// RenderText renders rep as bracket-tagged plaintext, suitable for a CLI's
// "status" subcommand.
func RenderText(rep *TeamReport) string {
	if rep == nil {
		return "no such team"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "team %q | phase %s | %d member(s), %d task(s)\n",
		rep.Team.Name, rep.Team.Phase, rep.Stats.TotalMembers, rep.Stats.TotalTasks)

	statuses := sortedTaskStatuses(rep.Stats.TasksByStatus)
	for _, status := range statuses {
		fmt.Fprintf(&sb, "  tasks[%s] = %d\n", status, rep.Stats.TasksByStatus[status])
	}

	if len(rep.Issues) > 0 {
		fmt.Fprintf(&sb, "  %d integrity issue(s):\n", len(rep.Issues))
		for _, issue := range rep.Issues {
			fmt.Fprintf(&sb, "    [%s] %s\n", issue.Kind, issue.Detail)
		}
	}
	return sb.String()
}

func sortedTaskStatuses(m map[store.TaskStatus]int) []store.TaskStatus {
	statuses := make([]store.TaskStatus, 0, len(m))
	for s := range m {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	return statuses
}

// ListTeams returns the name of every team on disk; the HTTP /teams route
// serves it.
func (r *Reporter) ListTeams() ([]string, error) {
	return r.store.Root().ListTeamNames()
}
