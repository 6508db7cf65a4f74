package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yethikrishna/levelcode-sub001/internal/lockfile"
	"github.com/yethikrishna/levelcode-sub001/internal/logging"
)

var log = logging.New("store")

// LockTimeout is the default deadline for team-store lock acquisition.
const LockTimeout = 10 * time.Second

// ErrCorrupted is returned when a config/task/message file fails schema
// validation and cannot be auto-repaired.
type ErrCorrupted struct {
	Path   string
	Reason string
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("corrupted_file: %s: %s", e.Path, e.Reason)
}

// ErrNotFound is returned by mutation operations whose target does not exist.
type ErrNotFound struct {
	Message string
}

func (e *ErrNotFound) Error() string { return e.Message }

// Store is the validated CRUD surface over the config root.
type Store struct {
	root *Root
}

// New creates a Store rooted at base.
func New(base string) *Store {
	return &Store{root: NewRoot(base)}
}

func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	// Write to a temp file then rename, so a reader never observes a
	// partially written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// CreateTeam creates the team's directory tree and writes its config.
func (s *Store) CreateTeam(config TeamConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	teamDir, err := s.root.TeamDir(config.Name)
	if err != nil {
		return err
	}
	inboxDir, err := s.root.InboxDir(config.Name)
	if err != nil {
		return err
	}
	tasksDir, err := s.root.TasksDir(config.Name)
	if err != nil {
		return err
	}
	configPath, err := s.root.TeamConfigPath(config.Name)
	if err != nil {
		return err
	}

	for _, dir := range []string{teamDir, inboxDir, tasksDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("store: create %s: %w", dir, err)
		}
	}

	return lockfile.WithLock(configPath, LockTimeout, func() error {
		return writeJSONFile(configPath, config)
	})
}

// roleRemap maps a free-form role substring to its closest built-in name.
// Order matters: more specific substrings are checked first.
func roleRemap(role string) string {
	lower := strings.ToLower(role)
	switch {
	case strings.Contains(lower, "director"):
		return "director"
	case strings.Contains(lower, "manager"):
		return "manager"
	case strings.Contains(lower, "engineer"):
		return "senior-engineer"
	case strings.Contains(lower, "lead"):
		return "product-lead"
	default:
		return "mid-level-engineer"
	}
}

// LoadTeamConfig reads and validates a team config. On structural mismatch
// it attempts exactly one auto-repair pass remapping unknown role strings to
// a built-in name. Returns (nil, nil) if the team does not exist.
func (s *Store) LoadTeamConfig(name string) (*TeamConfig, error) {
	configPath, err := s.root.TeamConfigPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var config TeamConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &ErrCorrupted{Path: configPath, Reason: err.Error()}
	}

	rolesOK := true
	for _, m := range config.Members {
		if !isBuiltinRole(m.Role) {
			rolesOK = false
			break
		}
	}
	if err := config.Validate(); err == nil && rolesOK {
		return &config, nil
	}

	// Auto-repair pass: remap any role that isn't one of the built-ins.
	// This is the only schema this store ever repairs; tasks and messages
	// surface their drift instead.
	repaired := false
	for i := range config.Members {
		if !isBuiltinRole(config.Members[i].Role) {
			log.Warn("auto-repairing unknown role", "team", name, "member", config.Members[i].Name, "role", config.Members[i].Role)
			config.Members[i].Role = roleRemap(config.Members[i].Role)
			repaired = true
		}
	}

	if err := config.Validate(); err != nil {
		return nil, &ErrCorrupted{Path: configPath, Reason: err.Error()}
	}

	if repaired {
		writeErr := lockfile.WithLock(configPath, LockTimeout, func() error {
			return writeJSONFile(configPath, config)
		})
		if writeErr != nil {
			return nil, fmt.Errorf("store: write repaired config: %w", writeErr)
		}
	}

	return &config, nil
}

func isBuiltinRole(role string) bool {
	for _, r := range BuiltinRoles {
		if r == role {
			return true
		}
	}
	return false
}

// SaveTeamConfig writes the whole config file under the config lock.
func (s *Store) SaveTeamConfig(name string, config TeamConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	configPath, err := s.root.TeamConfigPath(name)
	if err != nil {
		return err
	}
	return lockfile.WithLock(configPath, LockTimeout, func() error {
		return writeJSONFile(configPath, config)
	})
}

// DeleteTeam removes both the team and tasks subtrees. Idempotent.
func (s *Store) DeleteTeam(name string) error {
	teamDir, err := s.root.TeamDir(name)
	if err != nil {
		return err
	}
	tasksDir, err := s.root.TasksDir(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(teamDir); err != nil {
		return err
	}
	return os.RemoveAll(tasksDir)
}

// AddTeamMember appends a member under the config lock (read-modify-write).
func (s *Store) AddTeamMember(name string, member TeamMember) error {
	configPath, err := s.root.TeamConfigPath(name)
	if err != nil {
		return err
	}

	return lockfile.WithLock(configPath, LockTimeout, func() error {
		config, err := s.loadConfigUnlocked(configPath, name)
		if err != nil {
			return err
		}
		config.Members = append(config.Members, member)
		if err := config.Validate(); err != nil {
			return err
		}
		return writeJSONFile(configPath, *config)
	})
}

// RemoveTeamMember removes a member by agentId under the config lock.
func (s *Store) RemoveTeamMember(name, agentID string) error {
	configPath, err := s.root.TeamConfigPath(name)
	if err != nil {
		return err
	}

	return lockfile.WithLock(configPath, LockTimeout, func() error {
		config, err := s.loadConfigUnlocked(configPath, name)
		if err != nil {
			return err
		}
		filtered := config.Members[:0]
		for _, m := range config.Members {
			if m.AgentID != agentID {
				filtered = append(filtered, m)
			}
		}
		config.Members = filtered
		return writeJSONFile(configPath, *config)
	})
}

// loadConfigUnlocked reads config.json without taking the lock (caller must
// already hold it) and fails with ErrNotFound if absent.
func (s *Store) loadConfigUnlocked(configPath, name string) (*TeamConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrNotFound{Message: fmt.Sprintf("Team %q not found", name)}
		}
		return nil, err
	}
	var config TeamConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &ErrCorrupted{Path: configPath, Reason: err.Error()}
	}
	return &config, nil
}

// Root exposes the underlying path resolver for components (fabric,
// maintenance, discovery) that need direct file access.
func (s *Store) Root() *Root { return s.root }
