package fabric

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// EmbeddedBroker wraps an in-process NATS server so a single host can run
// the cross-process broadcast bridge (NATSBridge) without a separately
// deployed NATS instance.
type EmbeddedBroker struct {
	srv *natsserver.Server
}

// EmbeddedBrokerConfig configures the embedded broker's listener. A zero
// Port picks the NATS default; a negative Port binds a random free port
// (reported by ClientURL).
type EmbeddedBrokerConfig struct {
	Host string
	Port int
}

// NewEmbeddedBroker starts an embedded NATS server and blocks until it is
// ready for connections or startTimeout elapses.
func NewEmbeddedBroker(cfg EmbeddedBrokerConfig, startTimeout time.Duration) (*EmbeddedBroker, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4222
	} else if cfg.Port < 0 {
		cfg.Port = natsserver.RANDOM_PORT
	}

	opts := &natsserver.Options{
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("fabric: create embedded broker: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(startTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("fabric: embedded broker did not become ready within %s", startTimeout)
	}
	return &EmbeddedBroker{srv: srv}, nil
}

// ClientURL returns the URL a NATSBridge should connect to.
func (b *EmbeddedBroker) ClientURL() string { return b.srv.ClientURL() }

// Shutdown stops the embedded broker.
func (b *EmbeddedBroker) Shutdown() { b.srv.Shutdown() }
