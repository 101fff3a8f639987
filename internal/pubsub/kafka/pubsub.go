package kafka

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/pubsub"
)

// PubSub implements Publisher and Subscriber over Kafka
type PubSub struct {
	publisher  *wkafka.Publisher
	subscriber *wkafka.Subscriber
	logger     *logger.Logger
}

// NewPubSub creates a new kafka-based pubsub
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	publisher, err := wkafka.NewPublisher(
		wkafka.PublisherConfig{
			Brokers:   cfg.Kafka.Brokers,
			Marshaler: wkafka.DefaultMarshaler{},
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := wkafka.NewSubscriber(
		wkafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			Unmarshaler:           wkafka.DefaultMarshaler{},
			ConsumerGroup:         cfg.Kafka.ConsumerGroup,
			OverwriteSaramaConfig: getSaramaConfig(),
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

func getSaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_1_0_0

	// Start from the earliest message when no committed offset exists so
	// feedback reports are never skipped
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = 5000 * time.Millisecond
	saramaConfig.Consumer.Offsets.Retry.Max = 3

	return saramaConfig
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		return err
	}
	return p.subscriber.Close()
}
