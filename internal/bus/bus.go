// Package bus provides event bus implementations for Harpia.
package bus

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/harpia/internal/domain"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus is closed")

	// ErrBacklogFull is returned when a subscriber cannot accept more messages.
	ErrBacklogFull = errors.New("subscriber backlog is full")

	// ErrPayloadTooLarge is returned when a message exceeds the transport limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
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
