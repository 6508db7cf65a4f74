package fabric

import (
	"fmt"

	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

// Bridge is an optional cross-process broadcast sink (see bridge.go's NATS
// implementation). Fabric calls it best-effort after every successful
// delivery; a nil Bridge disables the behavior entirely.
type Bridge interface {
	Publish(team, agent string, msg ProtocolMessage) error
}

// Fabric is the thin messaging layer over store's inbox primitives.
type Fabric struct {
	store  *store.Store
	bridge Bridge
}

// New creates a Fabric backed by s. bridge may be nil.
func New(s *store.Store, bridge Bridge) *Fabric {
	return &Fabric{store: s, bridge: bridge}
}

// SendMessage delivers msg to to's inbox within team.
func (f *Fabric) SendMessage(team, to string, msg ProtocolMessage) error {
	raw, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := f.store.AppendToInbox(team, to, raw); err != nil {
		return fmt.Errorf("fabric: send to %s/%s: %w", team, to, err)
	}
	if f.bridge != nil {
		_ = f.bridge.Publish(team, to, msg)
	}
	return nil
}

// Broadcast fans msg out to every member of team whose name differs from
// msg.From, one SendMessage per recipient. The sender never appears in its
// own inbox.
func (f *Fabric) Broadcast(team string, msg ProtocolMessage) error {
	config, err := f.store.LoadTeamConfig(team)
	if err != nil {
		return err
	}
	if config == nil {
		return &store.ErrNotFound{Message: fmt.Sprintf("Team %q not found", team)}
	}

	msg.Type = TypeBroadcast
	for _, member := range config.Members {
		if member.Name == msg.From {
			continue
		}
		if err := f.SendMessage(team, member.Name, msg); err != nil {
			return err
		}
	}
	return nil
}

// ReadInbox returns the decoded, validated messages for team/agent. A single
// malformed message does not fail the whole read; an entry that fails decode
// or schema validation is skipped with its index recorded in skipped, so the
// valid messages around it are still returned. An inbox file that is not a
// JSON array at all fails the whole read with store.ErrCorrupted.
func (f *Fabric) ReadInbox(team, agent string) (messages []ProtocolMessage, skipped []int, err error) {
	raws, err := f.store.ReadInbox(team, agent)
	if err != nil {
		return nil, nil, err
	}

	messages = make([]ProtocolMessage, 0, len(raws))
	for i, raw := range raws {
		msg, decodeErr := decodeMessage(raw)
		if decodeErr != nil {
			skipped = append(skipped, i)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, skipped, nil
}

// ClearInbox empties team/agent's inbox. Clearing is explicit and separate
// from reading.
func (f *Fabric) ClearInbox(team, agent string) error {
	return f.store.ClearInbox(team, agent)
}

// RawInboxLength is a maintenance/testing helper returning the inbox's raw
// entry count without decoding, useful to assert "none lost" under
// concurrent writers even if some entries fail decode.
func (f *Fabric) RawInboxLength(team, agent string) (int, error) {
	raws, err := f.store.ReadInbox(team, agent)
	if err != nil {
		return 0, err
	}
	return len(raws), nil
}
