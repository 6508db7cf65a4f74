// Package store implements the persistent team store: validated CRUD for
// team configs, tasks, and inboxes under a per-user config root. All durable
// state is JSON files; every config, task and inbox write goes through that
// file's lock and every resolved path is checked against its expected parent.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPathTraversal is raised when a resolved path escapes its expected parent.
type ErrPathTraversal struct {
	Path   string
	Parent string
}

func (e *ErrPathTraversal) Error() string {
	return fmt.Sprintf("path_traversal: %q escapes expected parent %q", e.Path, e.Parent)
}

// ErrValidation is raised when an input fails its format invariant.
type ErrValidation struct {
	Message string
}

func (e *ErrValidation) Error() string { return e.Message }

var (
	teamNameRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
	memberNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	taskIDRe     = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateTeamName checks the team-name character set and length.
func ValidateTeamName(name string) error {
	if !teamNameRe.MatchString(name) {
		return &ErrValidation{Message: "Team name may only contain letters, numbers, hyphens, and underscores."}
	}
	return nil
}

// ValidateMemberName checks the member-name character set and length.
func ValidateMemberName(name string) error {
	if !memberNameRe.MatchString(name) {
		return &ErrValidation{Message: "Member name may only contain letters, numbers, hyphens, and underscores."}
	}
	return nil
}

// ValidateTaskID checks that id is a numeric string.
func ValidateTaskID(id string) error {
	if !taskIDRe.MatchString(id) {
		return &ErrValidation{Message: "Task ID must be numeric."}
	}
	return nil
}

// Root resolves paths under the config root directory.
type Root struct {
	base string
}

// NewRoot wraps base as a config root. base is typically
// <home>/.config/levelcode resolved by internal/config.
func NewRoot(base string) *Root {
	return &Root{base: base}
}

// Base returns the config root's absolute path.
func (r *Root) Base() string { return r.base }

// safeJoin joins base with elems and verifies the result stays within base.
func safeJoin(base string, elems ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, elems...)...)
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absBase, absJoined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ErrPathTraversal{Path: absJoined, Parent: absBase}
	}
	return absJoined, nil
}

// TeamDir returns teams/<name>.
func (r *Root) TeamDir(name string) (string, error) {
	return safeJoin(r.base, "teams", name)
}

// TeamConfigPath returns teams/<name>/config.json.
func (r *Root) TeamConfigPath(name string) (string, error) {
	return safeJoin(r.base, "teams", name, "config.json")
}

// InboxDir returns teams/<name>/inboxes.
func (r *Root) InboxDir(name string) (string, error) {
	return safeJoin(r.base, "teams", name, "inboxes")
}

// InboxPath returns teams/<name>/inboxes/<agent>.json.
func (r *Root) InboxPath(team, agent string) (string, error) {
	return safeJoin(r.base, "teams", team, "inboxes", agent+".json")
}

// TasksDir returns tasks/<team>.
func (r *Root) TasksDir(team string) (string, error) {
	return safeJoin(r.base, "tasks", team)
}

// TaskPath returns tasks/<team>/<taskId>.json.
func (r *Root) TaskPath(team, id string) (string, error) {
	return safeJoin(r.base, "tasks", team, id+".json")
}

// CompletedTasksDir returns tasks/<team>/completed.
func (r *Root) CompletedTasksDir(team string) (string, error) {
	return safeJoin(r.base, "tasks", team, "completed")
}

// LastActiveMarkerPath returns <root>/.last-active-team.
func (r *Root) LastActiveMarkerPath() string {
	return filepath.Join(r.base, ".last-active-team")
}

// ArchiveDir returns archive/<team>-<iso>.
func (r *Root) ArchiveDir(team, iso string) (string, error) {
	return safeJoin(r.base, "archive", fmt.Sprintf("%s-%s", team, iso))
}

// ListTeamNames returns every team directory name currently on disk.
func (r *Root) ListTeamNames() ([]string, error) {
	teamsDir := filepath.Join(r.base, "teams")
	entries, err := os.ReadDir(teamsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
