package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 2 * time.Second

// NATSBroker publishes events on "<prefix>.<event type>" subjects.
type NATSBroker struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSBroker(url, prefix string) (*NATSBroker, error) {
	conn, err := nats.Connect(url, nats.Name("tablebook"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBroker{conn: conn, prefix: prefix}, nil
}

func (b *NATSBroker) Subject(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + "." + topic
}

// Publish blocks until the server acknowledges the flush.
func (b *NATSBroker) Publish(ctx context.Context, topic string, body []byte) error {
	if err := b.conn.Publish(b.Subject(topic), body); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, natsFlushTimeout)
	defer cancel()
	if err := b.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (b *NATSBroker) Close() error {
	b.conn.Close()
	return nil
}
