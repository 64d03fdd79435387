package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/flexxlabs/agenthub-backend/internal/clients/redis"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/sse"
)

// Notifier pushes dashboard events to the local SSE hub and, when a Redis bus
// is configured, to the other replicas. A nil *Notifier is a no-op so callers
// never have to guard.
type Notifier struct {
	log *logger.Logger
	hub *sse.Hub
	bus redis.EventBus
}

func NewNotifier(log *logger.Logger, hub *sse.Hub, bus redis.EventBus) *Notifier {
	return &Notifier{log: log.With("service", "Notifier"), hub: hub, bus: bus}
}

func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, event sse.Event, data any) {
	if n == nil || n.hub == nil {
		return
	}
	msg := sse.Message{Channel: sse.UserChannel(userID), Event: event, Data: data}
	n.hub.Broadcast(msg)
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Failed to publish event to bus", "event", string(event), "error", err)
		}
	}
}

// StartBusForwarder re-broadcasts events published by other replicas into the
// local hub.
func (n *Notifier) StartBusForwarder(ctx context.Context) error {
	if n == nil || n.bus == nil {
		return nil
	}
	return n.bus.StartForwarder(ctx, func(m sse.Message) {
		n.hub.Broadcast(m)
	})
}
