package fabric

import (
	"encoding/json"
	"fmt"
	"time"

	nc "github.com/nats-io/nats.go"
)

// NATSBridge publishes every inbox delivery onto
// team.<team>.inbox.<agent> so a second host-local process (a dashboard,
// say) can observe message flow without polling inbox files. It is advisory
// only: the inbox files remain the state of record, and publish errors are
// swallowed by the caller (Fabric.SendMessage) rather than failing delivery.
type NATSBridge struct {
	conn *nc.Conn
}

// NewNATSBridge connects to a NATS server at url for bridging only.
func NewNATSBridge(url string) (*NATSBridge, error) {
	conn, err := nc.Connect(url, nc.ReconnectWait(2*time.Second), nc.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("fabric: connect nats bridge: %w", err)
	}
	return &NATSBridge{conn: conn}, nil
}

// Close releases the underlying NATS connection.
func (b *NATSBridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish implements Bridge.
func (b *NATSBridge) Publish(team, agent string, msg ProtocolMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("team.%s.inbox.%s", team, agent)
	return b.conn.Publish(subject, data)
}
