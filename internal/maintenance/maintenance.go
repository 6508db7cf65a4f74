// Package maintenance implements read-whole-store operations that are safe
// to run alongside normal team activity: stale-lock sweeps, orphan pruning,
// integrity checks, config repair, stats, and archival.
package maintenance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yethikrishna/levelcode-sub001/internal/logging"
	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

var log = logging.New("maintenance")

// DefaultStaleLockAge matches lockfile's own default, kept independent so a
// maintenance sweep can be tuned without touching acquisition behavior.
const DefaultStaleLockAge = 10 * time.Second

// Maintainer runs maintenance passes over one config root's teams.
type Maintainer struct {
	store *store.Store
}

// New creates a Maintainer backed by s.
func New(s *store.Store) *Maintainer {
	return &Maintainer{store: s}
}

// CleanupStaleLocks walks team/tasks/inboxes directories for team and
// removes any *.lock sidecar whose body parses as a timestamp older than
// staleAfter, or whose body is unparseable (a corrupted lock can never be
// legitimately held). Returns the count removed.
func (m *Maintainer) CleanupStaleLocks(team string, staleAfter time.Duration) (int, error) {
	root := m.store.Root()
	dirs := []string{}
	if d, err := root.TeamDir(team); err == nil {
		dirs = append(dirs, d)
	}
	if d, err := root.TasksDir(team); err == nil {
		dirs = append(dirs, d)
	}
	if d, err := root.InboxDir(team); err == nil {
		dirs = append(dirs, d)
	}

	removed := 0
	for _, dir := range dirs {
		n, err := sweepLocks(dir, staleAfter)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func sweepLocks(dir string, staleAfter time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, readErr := os.ReadFile(path)
		stale := true
		if readErr == nil {
			if ts, parseErr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); parseErr == nil {
				stale = time.Since(time.UnixMilli(ts)) > staleAfter
			}
		}
		if stale {
			if rmErr := os.Remove(path); rmErr == nil {
				log.Warn("removed stale lock", "path", path)
				removed++
			}
		}
	}
	return removed, nil
}

// PruneCompletedTasks moves every completed task whose UpdatedAt is older
// than olderThan into tasks/<team>/completed/. Returns the count moved.
func (m *Maintainer) PruneCompletedTasks(team string, olderThan time.Duration) (int, error) {
	tasks, err := m.store.ListTasks(team)
	if err != nil {
		return 0, err
	}

	destDir, err := m.store.Root().CompletedTasksDir(team)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("maintenance: mkdir %s: %w", destDir, err)
	}

	cutoff := time.Now().Add(-olderThan).UnixMilli()
	moved := 0
	for _, t := range tasks {
		if t.Status != store.TaskCompleted || t.UpdatedAt >= cutoff {
			continue
		}
		srcPath, err := m.store.Root().TaskPath(team, t.ID)
		if err != nil {
			return moved, err
		}
		dstPath := filepath.Join(destDir, t.ID+".json")
		if err := os.Rename(srcPath, dstPath); err != nil {
			return moved, fmt.Errorf("maintenance: move task %s: %w", t.ID, err)
		}
		moved++
	}
	return moved, nil
}

// CleanupOrphanedInboxes removes inbox files whose stem is not a current
// member name. Returns the count removed.
func (m *Maintainer) CleanupOrphanedInboxes(team string) (int, error) {
	config, err := m.store.LoadTeamConfig(team)
	if err != nil {
		return 0, err
	}
	if config == nil {
		return 0, &store.ErrNotFound{Message: fmt.Sprintf("Team %q not found", team)}
	}

	memberNames := make(map[string]bool, len(config.Members))
	for _, mem := range config.Members {
		memberNames[mem.Name] = true
	}

	agents, err := m.store.ListInboxAgents(team)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, agent := range agents {
		if memberNames[agent] {
			continue
		}
		path, err := m.store.Root().InboxPath(team, agent)
		if err != nil {
			return removed, err
		}
		if rmErr := os.Remove(path); rmErr == nil {
			log.Warn("removed orphaned inbox", "team", team, "agent", agent)
			removed++
		}
	}
	return removed, nil
}

// RepairTeamConfig rebuilds a minimal config when config.json is missing or
// fails schema, writing it back. The rebuilt phase is the latest
// (furthest-forward) phase seen on any task; whatever fields still parse
// from the broken file (description, lead, creation time, valid members)
// are carried over.
func (m *Maintainer) RepairTeamConfig(team string) (*store.TeamConfig, error) {
	existing, loadErr := m.store.LoadTeamConfig(team)
	if loadErr == nil && existing != nil {
		return existing, nil
	}

	tasks, err := m.store.ListTasks(team)
	if err != nil {
		return nil, err
	}

	phase := store.PhasePlanning
	for _, t := range tasks {
		if t.Phase != "" && phaseIndex(t.Phase) > phaseIndex(phase) {
			phase = t.Phase
		}
	}

	rebuilt := store.TeamConfig{
		Name:      team,
		CreatedAt: time.Now().UnixMilli(),
		Phase:     phase,
		Settings:  store.TeamSettings{MaxMembers: 10},
	}
	m.salvagePartialConfig(team, &rebuilt)
	log.Warn("rebuilding config from observed task metadata", "team", team, "phase", rebuilt.Phase)
	if err := m.store.SaveTeamConfig(team, rebuilt); err != nil {
		return nil, err
	}
	return &rebuilt, nil
}

// salvagePartialConfig copies whatever fields still parse out of a broken
// config.json into rebuilt. Members that fail name validation or collide
// are dropped rather than repaired; message and task schemas are never
// touched here.
func (m *Maintainer) salvagePartialConfig(team string, rebuilt *store.TeamConfig) {
	configPath, err := m.store.Root().TeamConfigPath(team)
	if err != nil {
		return
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return
	}

	var partial store.TeamConfig
	_ = json.Unmarshal(data, &partial)

	if partial.Description != "" {
		rebuilt.Description = partial.Description
	}
	if partial.LeadAgentID != "" {
		rebuilt.LeadAgentID = partial.LeadAgentID
	}
	if partial.CreatedAt > 0 {
		rebuilt.CreatedAt = partial.CreatedAt
	}
	if partial.Settings.MaxMembers > 0 {
		rebuilt.Settings = partial.Settings
	}
	if phaseIndex(partial.Phase) > phaseIndex(rebuilt.Phase) {
		rebuilt.Phase = partial.Phase
	}

	seenIDs := make(map[string]bool, len(partial.Members))
	seenNames := make(map[string]bool, len(partial.Members))
	for _, member := range partial.Members {
		if store.ValidateMemberName(member.Name) != nil {
			continue
		}
		if member.AgentID == "" || seenIDs[member.AgentID] || seenNames[member.Name] {
			continue
		}
		seenIDs[member.AgentID] = true
		seenNames[member.Name] = true
		rebuilt.Members = append(rebuilt.Members, member)
	}
}

func phaseIndex(p store.Phase) int {
	for i, candidate := range store.Phases {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Stats aggregates a team's task and member status counts.
type Stats struct {
	Phase         store.Phase
	UptimeMillis  int64
	TasksByStatus map[store.TaskStatus]int
	MembersByStat map[store.MemberStatus]int
	TotalTasks    int
	TotalMembers  int
}

// GetTeamStats aggregates task/member status counts, phase, and uptime.
func (m *Maintainer) GetTeamStats(team string) (*Stats, error) {
	config, err := m.store.LoadTeamConfig(team)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, &store.ErrNotFound{Message: fmt.Sprintf("Team %q not found", team)}
	}
	tasks, err := m.store.ListTasks(team)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Phase:         config.Phase,
		UptimeMillis:  time.Now().UnixMilli() - config.CreatedAt,
		TasksByStatus: make(map[store.TaskStatus]int),
		MembersByStat: make(map[store.MemberStatus]int),
		TotalTasks:    len(tasks),
		TotalMembers:  len(config.Members),
	}
	for _, t := range tasks {
		stats.TasksByStatus[t.Status]++
	}
	for _, mem := range config.Members {
		stats.MembersByStat[mem.Status]++
	}
	return stats, nil
}

// Issue is a typed integrity problem surfaced by ValidateTeamIntegrity.
type Issue struct {
	Kind   string
	Detail string
}

const (
	IssueMissingConfig   = "missing_config"
	IssueInvalidConfig   = "invalid_config"
	IssueInvalidTask     = "invalid_task"
	IssueOrphanedInbox   = "orphaned_inbox"
	IssueMissingInbox    = "missing_inbox"
	IssueStaleLock       = "stale_lock"
	IssueDanglingTaskRef = "dangling_task_reference"
)

// ValidateTeamIntegrity emits a non-fatal list of typed issues for
// observability; it never repairs anything itself.
func (m *Maintainer) ValidateTeamIntegrity(team string) ([]Issue, error) {
	var issues []Issue

	configPath, err := m.store.Root().TeamConfigPath(team)
	if err != nil {
		return nil, err
	}
	config, loadErr := m.store.LoadTeamConfig(team)
	switch {
	case loadErr != nil:
		issues = append(issues, Issue{Kind: IssueInvalidConfig, Detail: loadErr.Error()})
	case config == nil:
		issues = append(issues, Issue{Kind: IssueMissingConfig, Detail: configPath})
	}

	tasks, err := m.store.ListTasks(team)
	if err != nil {
		return issues, err
	}
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
		if err := t.Validate(); err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidTask, Detail: fmt.Sprintf("%s: %v", t.ID, err)})
		}
	}
	for _, t := range tasks {
		for _, ref := range append(append([]string{}, t.BlockedBy...), t.Blocks...) {
			if !known[ref] {
				issues = append(issues, Issue{Kind: IssueDanglingTaskRef, Detail: fmt.Sprintf("%s -> %s", t.ID, ref)})
			}
		}
	}

	if config != nil {
		memberNames := make(map[string]bool, len(config.Members))
		for _, mem := range config.Members {
			memberNames[mem.Name] = true
		}
		agents, err := m.store.ListInboxAgents(team)
		if err == nil {
			present := make(map[string]bool, len(agents))
			for _, a := range agents {
				present[a] = true
				if !memberNames[a] {
					issues = append(issues, Issue{Kind: IssueOrphanedInbox, Detail: a})
				}
			}
			for name := range memberNames {
				if !present[name] {
					issues = append(issues, Issue{Kind: IssueMissingInbox, Detail: name})
				}
			}
		}
	}

	for _, dir := range []string{mustDir(m.store.Root().TeamDir(team)), mustDir(m.store.Root().TasksDir(team)), mustDir(m.store.Root().InboxDir(team))} {
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".lock") {
				path := filepath.Join(dir, e.Name())
				data, readErr := os.ReadFile(path)
				if readErr == nil {
					if ts, parseErr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); parseErr == nil {
						if time.Since(time.UnixMilli(ts)) > DefaultStaleLockAge {
							issues = append(issues, Issue{Kind: IssueStaleLock, Detail: path})
						}
						continue
					}
				}
				issues = append(issues, Issue{Kind: IssueStaleLock, Detail: path})
			}
		}
	}

	return issues, nil
}

func mustDir(dir string, err error) string {
	if err != nil {
		return ""
	}
	return dir
}

// ArchiveTeam renames teams/<team> and tasks/<team> into
// archive/<team>-<iso>/{team,tasks}, with colons and periods in the ISO
// timestamp replaced by hyphens.
func (m *Maintainer) ArchiveTeam(team string) (string, error) {
	iso := isoForArchive(time.Now())
	archiveDir, err := m.store.Root().ArchiveDir(team, iso)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("maintenance: mkdir %s: %w", archiveDir, err)
	}

	teamDir, err := m.store.Root().TeamDir(team)
	if err != nil {
		return "", err
	}
	tasksDir, err := m.store.Root().TasksDir(team)
	if err != nil {
		return "", err
	}

	if _, statErr := os.Stat(teamDir); statErr == nil {
		if err := os.Rename(teamDir, filepath.Join(archiveDir, "team")); err != nil {
			return "", fmt.Errorf("maintenance: archive team dir: %w", err)
		}
	}
	if _, statErr := os.Stat(tasksDir); statErr == nil {
		if err := os.Rename(tasksDir, filepath.Join(archiveDir, "tasks")); err != nil {
			return "", fmt.Errorf("maintenance: archive tasks dir: %w", err)
		}
	}
	return archiveDir, nil
}

// isoForArchive formats t as YYYY-MM-DDTHH-MM-SS-SSSZ, replacing the colons
// and the milliseconds separator period from RFC3339 with hyphens.
func isoForArchive(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	iso = strings.ReplaceAll(iso, ":", "-")
	iso = strings.ReplaceAll(iso, ".", "-")
	return iso
}
