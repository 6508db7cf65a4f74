package store

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/yethikrishna/levelcode-sub001/internal/lockfile"
)

// RawMessage is an opaque envelope: the store layer only knows inboxes hold
// an ordered array of JSON objects. internal/fabric owns the tagged-union
// ProtocolMessage schema and (de)serializes into/out of this shape.
type RawMessage = json.RawMessage

// AppendToInbox appends msg to team/<agent>'s inbox under the inbox file's
// lock, creating the file if it doesn't exist yet.
func (s *Store) AppendToInbox(team, agent string, msg RawMessage) error {
	inboxPath, err := s.root.InboxPath(team, agent)
	if err != nil {
		return err
	}

	return lockfile.WithLock(inboxPath, LockTimeout, func() error {
		messages, readErr := readInboxFileUnlocked(inboxPath)
		if readErr != nil {
			return readErr
		}
		messages = append(messages, msg)
		return writeJSONFile(inboxPath, messages)
	})
}

// ReadInbox returns the ordered message array for team/<agent>. Reads are
// lock-free; a torn write surfaces as ErrCorrupted so the caller can retry.
func (s *Store) ReadInbox(team, agent string) ([]RawMessage, error) {
	inboxPath, err := s.root.InboxPath(team, agent)
	if err != nil {
		return nil, err
	}
	return readInboxFileUnlocked(inboxPath)
}

// ClearInbox writes an empty array to team/<agent>'s inbox.
func (s *Store) ClearInbox(team, agent string) error {
	inboxPath, err := s.root.InboxPath(team, agent)
	if err != nil {
		return err
	}
	return lockfile.WithLock(inboxPath, LockTimeout, func() error {
		return writeJSONFile(inboxPath, []RawMessage{})
	})
}

func readInboxFileUnlocked(path string) ([]RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RawMessage{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []RawMessage{}, nil
	}

	var messages []RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, &ErrCorrupted{Path: path, Reason: err.Error()}
	}
	return messages, nil
}

// ListInboxAgents returns the stems (agent names) of every inbox file
// currently on disk for team, used by maintenance to find orphans.
func (s *Store) ListInboxAgents(team string) ([]string, error) {
	inboxDir, err := s.root.InboxDir(team)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(inboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var agents []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > 5 && name[len(name)-5:] == ".json" {
			agents = append(agents, name[:len(name)-5])
		}
	}
	return agents, nil
}

// SetLastActiveTeam best-effort writes the last-active marker. The marker is
// only a resolver tiebreaker, so a failed write must never fail the caller;
// errors are swallowed.
func (s *Store) SetLastActiveTeam(name string) {
	_ = os.WriteFile(s.root.LastActiveMarkerPath(), []byte(name), 0644)
}

// LastActiveTeam reads the marker, returning "" if absent or unreadable.
func (s *Store) LastActiveTeam() string {
	data, err := os.ReadFile(s.root.LastActiveMarkerPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
