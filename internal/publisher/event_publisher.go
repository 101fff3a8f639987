package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/pubsub"
	"github.com/invopeak/fakturaserie/internal/types"
)

const (
	EventSeriesCreated   = "series.created"
	EventSeriesCancelled = "series.cancelled"
)

// DomainEvent is an observability event emitted on lifecycle transitions
type DomainEvent struct {
	ID              string    `json:"id"`
	EventName       string    `json:"event_name"`
	SeriesReference string    `json:"series_reference"`
	CaseReference   string    `json:"case_reference"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventPublisher emits domain events; failures are logged, never surfaced,
// since observability must not block the lifecycle
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventName, seriesReference, caseReference string)
}

type eventPublisher struct {
	pubSub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewEventPublisher creates a new domain event publisher
func NewEventPublisher(cfg *config.Configuration, pubSub pubsub.Publisher, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		topic:  cfg.Kafka.EventTopic,
		logger: logger,
	}
}

func (p *eventPublisher) PublishEvent(ctx context.Context, eventName, seriesReference, caseReference string) {
	event := DomainEvent{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName:       eventName,
		SeriesReference: seriesReference,
		CaseReference:   caseReference,
		Timestamp:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Errorw("failed to marshal domain event", "error", err, "event_name", eventName)
		return
	}

	if err := p.pubSub.Publish(ctx, p.topic, message.NewMessage(event.ID, payload)); err != nil {
		p.logger.Errorw("failed to publish domain event",
			"error", err,
			"event_name", eventName,
			"series_reference", seriesReference,
		)
	}
}
