package consumer

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/config"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/pubsub/router"
	"github.com/invopeak/fakturaserie/internal/service"
)

// FeedbackConsumer consumes status reports from the external billing system
// and feeds them into the feedback service
type FeedbackConsumer struct {
	feedbackService service.FeedbackService
	logger          *logger.Logger
}

// NewFeedbackConsumer creates a new feedback consumer
func NewFeedbackConsumer(feedbackService service.FeedbackService, logger *logger.Logger) *FeedbackConsumer {
	return &FeedbackConsumer{
		feedbackService: feedbackService,
		logger:          logger,
	}
}

// RegisterHandler attaches the consumer to the feedback topic
func (c *FeedbackConsumer) RegisterHandler(r *router.Router, cfg *config.Configuration, subscriber message.Subscriber) {
	r.AddNoPublishHandler(
		"feedback_consumer",
		cfg.Kafka.FeedbackTopic,
		subscriber,
		c.handleMessage,
	)
}

func (c *FeedbackConsumer) handleMessage(msg *message.Message) error {
	var feedbackMsg dto.FeedbackMessage
	if err := json.Unmarshal(msg.Payload, &feedbackMsg); err != nil {
		// malformed payloads are dropped, retrying cannot fix them
		c.logger.Errorw("failed to unmarshal feedback message",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	err := c.feedbackService.ProcessFeedback(msg.Context(), &feedbackMsg)
	if err != nil {
		if ierr.IsValidation(err) {
			c.logger.Errorw("dropping invalid feedback message",
				"error", err,
				"external_order_ref", feedbackMsg.ExternalOrderRef,
			)
			return nil
		}
		return err
	}

	return nil
}
