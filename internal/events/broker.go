package events

import (
	"fmt"

	"tablebook/internal/config"
	"tablebook/internal/domain"
)

// NewBroker connects the configured broker. It returns nil for "none".
func NewBroker(cfg config.EventsConfig) (domain.Broker, error) {
	switch cfg.Broker {
	case config.BrokerNone, "":
		return nil, nil
	case config.BrokerNATS:
		b, err := NewNATSBroker(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BrokerAMQP:
		b, err := NewAMQPBroker(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}
