package api

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/events"
)

const eventSource = "laptop-store"

// Broadcaster pushes a message to live clients.
type Broadcaster interface {
	Broadcast(messageType string, data interface{}, source string)
}

// Notifier announces committed changes on Kafka and the WebSocket feed.
// Delivery is best effort; failures are logged only.
type Notifier struct {
	publisher events.Publisher
	hub       Broadcaster
	logger    *logrus.Logger
}

func NewNotifier(publisher events.Publisher, hub Broadcaster, logger *logrus.Logger) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Notifier{publisher: publisher, hub: hub, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, entity, action string, id int64, data interface{}) {
	if n == nil {
		return
	}
	event := events.ChangeEvent{
		Entity:    entity,
		Action:    action,
		EntityID:  id,
		Data:      data,
		EventTime: time.Now().UTC(),
	}

	if err := n.publisher.PublishChange(ctx, event); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"entity": entity,
			"action": action,
			"id":     id,
		}).Warn("Failed to publish change event")
	}
	if n.hub != nil {
		n.hub.Broadcast(entity+"."+action, event, eventSource)
	}
}
