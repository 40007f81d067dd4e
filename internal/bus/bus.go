// Package bus provides event bus implementations for decision and
// settlement events.
package bus

import (
	"fmt"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// New creates a new event bus based on configuration.
// Community edition: ChannelBus. Pro edition: NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
