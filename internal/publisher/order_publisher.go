package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/config"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/pubsub"
	"github.com/invopeak/fakturaserie/internal/types"
)

// OrderPublisher sends outbound order messages to the external billing system
type OrderPublisher interface {
	PublishOrder(ctx context.Context, msg *dto.OrderMessage) error
}

type orderPublisher struct {
	pubSub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewOrderPublisher creates a new order publisher
func NewOrderPublisher(cfg *config.Configuration, pubSub pubsub.Publisher, logger *logger.Logger) OrderPublisher {
	return &orderPublisher{
		pubSub: pubSub,
		topic:  cfg.Kafka.OrderTopic,
		logger: logger,
	}
}

func (p *orderPublisher) PublishOrder(ctx context.Context, msg *dto.OrderMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to marshal order message").
			Mark(ierr.ErrSystem)
	}

	wmMsg := message.NewMessage(types.GenerateUUID(), payload)
	wmMsg.Metadata.Set("external_order_ref", msg.ExternalOrderRef)

	if err := p.pubSub.Publish(ctx, p.topic, wmMsg); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to publish order for invoice %s", msg.InvoiceReference).
			Mark(ierr.ErrPublishFailed)
	}

	p.logger.Debugw("published order message",
		"invoice_reference", msg.InvoiceReference,
		"external_order_ref", msg.ExternalOrderRef,
		"topic", p.topic,
	)

	return nil
}
