package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/yethikrishna/levelcode-sub001/internal/lockfile"
)

// CreateTask writes a new task file under a per-task lock.
func (s *Store) CreateTask(team string, task TeamTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	taskPath, err := s.root.TaskPath(team, task.ID)
	if err != nil {
		return err
	}

	return lockfile.WithLock(taskPath, LockTimeout, func() error {
		return writeJSONFile(taskPath, task)
	})
}

// TaskPatch is a partial update applied by UpdateTask; a nil field is left
// untouched, while a non-nil field overwrites the stored value.
type TaskPatch struct {
	Subject     *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	Owner       *string
	BlockedBy   *[]string
	Blocks      *[]string
	Phase       *Phase
	ActiveForm  *string
	Metadata    map[string]interface{}
}

// UpdateTask applies patch to the task identified by id, rewriting
// updatedAt to now().
func (s *Store) UpdateTask(team, id string, patch TaskPatch) (*TeamTask, error) {
	if err := ValidateTaskID(id); err != nil {
		return nil, err
	}

	taskPath, err := s.root.TaskPath(team, id)
	if err != nil {
		return nil, err
	}

	var result *TeamTask
	err = lockfile.WithLock(taskPath, LockTimeout, func() error {
		data, readErr := os.ReadFile(taskPath)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return &ErrNotFound{Message: fmt.Sprintf("Task %q not found in team %q", id, team)}
			}
			return readErr
		}

		var task TeamTask
		if jsonErr := json.Unmarshal(data, &task); jsonErr != nil {
			return &ErrCorrupted{Path: taskPath, Reason: jsonErr.Error()}
		}

		applyPatch(&task, patch)
		task.UpdatedAt = time.Now().UnixMilli()

		if validateErr := task.Validate(); validateErr != nil {
			return validateErr
		}

		if writeErr := writeJSONFile(taskPath, task); writeErr != nil {
			return writeErr
		}
		result = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyPatch(task *TeamTask, patch TaskPatch) {
	if patch.Subject != nil {
		task.Subject = *patch.Subject
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Owner != nil {
		task.Owner = *patch.Owner
	}
	if patch.BlockedBy != nil {
		task.BlockedBy = *patch.BlockedBy
	}
	if patch.Blocks != nil {
		task.Blocks = *patch.Blocks
	}
	if patch.Phase != nil {
		task.Phase = *patch.Phase
	}
	if patch.ActiveForm != nil {
		task.ActiveForm = *patch.ActiveForm
	}
	if patch.Metadata != nil {
		task.Metadata = patch.Metadata
	}
}

// GetTask reads a single task; returns (nil, nil) if absent.
func (s *Store) GetTask(team, id string) (*TeamTask, error) {
	if err := ValidateTaskID(id); err != nil {
		return nil, err
	}
	taskPath, err := s.root.TaskPath(team, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(taskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var task TeamTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, &ErrCorrupted{Path: taskPath, Reason: err.Error()}
	}
	return &task, nil
}

// ListTasks reads every task file for a team, sorted by id ascending.
func (s *Store) ListTasks(team string) ([]TeamTask, error) {
	tasksDir, err := s.root.TasksDir(team)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TeamTask{}, nil
		}
		return nil, err
	}

	tasks := make([]TeamTask, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(tasksDir, e.Name()))
		if readErr != nil {
			continue
		}
		var task TeamTask
		if jsonErr := json.Unmarshal(data, &task); jsonErr != nil {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		ni, erri := strconv.Atoi(tasks[i].ID)
		nj, errj := strconv.Atoi(tasks[j].ID)
		if erri != nil || errj != nil {
			return tasks[i].ID < tasks[j].ID
		}
		return ni < nj
	})
	return tasks, nil
}

// DanglingReferences returns every (taskID, referencedID) pair in team whose
// referenced task does not exist.
func (s *Store) DanglingReferences(team string) ([][2]string, error) {
	tasks, err := s.ListTasks(team)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	var dangling [][2]string
	for _, t := range tasks {
		for _, ref := range t.BlockedBy {
			if !known[ref] {
				dangling = append(dangling, [2]string{t.ID, ref})
			}
		}
		for _, ref := range t.Blocks {
			if !known[ref] {
				dangling = append(dangling, [2]string{t.ID, ref})
			}
		}
	}
	return dangling, nil
}
