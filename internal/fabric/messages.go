// Package fabric implements the durable per-agent message fabric: a thin
// layer over the team store's inbox primitives carrying a tagged-union
// message protocol over file-backed inbox queues.
package fabric

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the ProtocolMessage tagged union.
type MessageType string

const (
	TypeIdleNotification     MessageType = "idle_notification"
	TypeTaskCompleted        MessageType = "task_completed"
	TypeShutdownRequest      MessageType = "shutdown_request"
	TypeShutdownApproved     MessageType = "shutdown_approved"
	TypeShutdownRejected     MessageType = "shutdown_rejected"
	TypePlanApprovalRequest  MessageType = "plan_approval_request"
	TypePlanApprovalResponse MessageType = "plan_approval_response"
	TypeMessage              MessageType = "message"
	TypeBroadcast            MessageType = "broadcast"
)

// ProtocolMessage is a tagged-union envelope. Every variant shares Type and
// Timestamp; the rest are populated per-variant and left zero otherwise, so
// inbox files stay a single homogeneous JSON array regardless of which
// variants they hold.
type ProtocolMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`

	// idle_notification
	From            string `json:"from,omitempty"`
	Summary         string `json:"summary,omitempty"`
	CompletedTaskID string `json:"completedTaskId,omitempty"`

	// task_completed
	TaskID      string `json:"taskId,omitempty"`
	TaskSubject string `json:"taskSubject,omitempty"`

	// shutdown_request / shutdown_approved / shutdown_rejected
	RequestID string `json:"requestId,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// plan_approval_request
	PlanContent string `json:"planContent,omitempty"`

	// plan_approval_response
	Approved bool   `json:"approved,omitempty"`
	Feedback string `json:"feedback,omitempty"`

	// message / broadcast
	To   string `json:"to,omitempty"`
	Text string `json:"text,omitempty"`
}

// ErrInvalidMessage is raised when a ProtocolMessage fails schema validation
// at read time, e.g. when it was produced by a different protocol version.
type ErrInvalidMessage struct {
	Reason string
}

func (e *ErrInvalidMessage) Error() string {
	return fmt.Sprintf("invalid protocol message: %s", e.Reason)
}

// Validate checks that the required fields for Type are present. Unlike team
// configs, message schemas are never auto-repaired: drift is surfaced, not
// silently patched.
func (m *ProtocolMessage) Validate() error {
	if m.Timestamp == "" {
		return &ErrInvalidMessage{Reason: "missing timestamp"}
	}
	switch m.Type {
	case TypeIdleNotification:
		if m.From == "" {
			return &ErrInvalidMessage{Reason: "idle_notification requires from"}
		}
	case TypeTaskCompleted:
		if m.From == "" || m.TaskID == "" {
			return &ErrInvalidMessage{Reason: "task_completed requires from and taskId"}
		}
	case TypeShutdownRequest:
		if m.RequestID == "" || m.From == "" {
			return &ErrInvalidMessage{Reason: "shutdown_request requires requestId and from"}
		}
	case TypeShutdownApproved:
		if m.RequestID == "" || m.From == "" {
			return &ErrInvalidMessage{Reason: "shutdown_approved requires requestId and from"}
		}
	case TypeShutdownRejected:
		if m.RequestID == "" || m.From == "" || m.Reason == "" {
			return &ErrInvalidMessage{Reason: "shutdown_rejected requires requestId, from and reason"}
		}
	case TypePlanApprovalRequest:
		if m.RequestID == "" || m.From == "" {
			return &ErrInvalidMessage{Reason: "plan_approval_request requires requestId and from"}
		}
	case TypePlanApprovalResponse:
		if m.RequestID == "" {
			return &ErrInvalidMessage{Reason: "plan_approval_response requires requestId"}
		}
	case TypeMessage:
		if m.From == "" || m.To == "" {
			return &ErrInvalidMessage{Reason: "message requires from and to"}
		}
	case TypeBroadcast:
		if m.From == "" {
			return &ErrInvalidMessage{Reason: "broadcast requires from"}
		}
	default:
		return &ErrInvalidMessage{Reason: fmt.Sprintf("unknown message type %q", m.Type)}
	}
	return nil
}

// decodeMessage validates raw against the tagged-union schema.
func decodeMessage(raw json.RawMessage) (ProtocolMessage, error) {
	var msg ProtocolMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ProtocolMessage{}, &ErrInvalidMessage{Reason: err.Error()}
	}
	if err := msg.Validate(); err != nil {
		return ProtocolMessage{}, err
	}
	return msg, nil
}

func encodeMessage(msg ProtocolMessage) (json.RawMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
