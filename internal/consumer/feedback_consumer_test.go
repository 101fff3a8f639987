package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/service"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) (*FeedbackConsumer, *testutil.InMemoryFeedbackStore) {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	feedbackStore := testutil.NewInMemoryFeedbackStore()
	feedbackService := service.NewFeedbackService(service.ServiceParams{
		Logger:         log,
		Config:         cfg,
		DB:             testutil.NewMockPostgresClient(),
		Cache:          cache.NewInMemoryCache(),
		SeriesRepo:     testutil.NewInMemorySeriesStore(),
		InvoiceRepo:    testutil.NewInMemoryInvoiceStore(),
		FeedbackRepo:   feedbackStore,
		LeaseRepo:      testutil.NewInMemoryLeaseStore(),
		OrderPublisher: testutil.NewInMemoryOrderPublisher(),
		EventPublisher: testutil.NewInMemoryEventPublisher(),
	})

	return NewFeedbackConsumer(feedbackService, log), feedbackStore
}

func TestFeedbackConsumerHandlesMessage(t *testing.T) {
	consumer, feedbackStore := newTestConsumer(t)

	payload, err := json.Marshal(dto.FeedbackMessage{
		ExternalOrderRef: "order_dispatch-abc123",
		ReportDate:       time.Now().UTC(),
		FeedbackStatus:   types.FeedbackStatusPaid,
		BilledAmount:     decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	err = consumer.handleMessage(message.NewMessage("msg-1", payload))
	assert.NoError(t, err)

	records, err := feedbackStore.ListByExternalOrderRef(context.Background(), "order_dispatch-abc123")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, types.FeedbackStatusPaid, records[0].FeedbackStatus)
}

func TestFeedbackConsumerDropsMalformedPayload(t *testing.T) {
	consumer, feedbackStore := newTestConsumer(t)

	err := consumer.handleMessage(message.NewMessage("msg-2", []byte("not json")))
	assert.NoError(t, err)

	records, err := feedbackStore.ListByExternalOrderRef(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFeedbackConsumerDropsInvalidMessage(t *testing.T) {
	consumer, feedbackStore := newTestConsumer(t)

	// missing external order reference fails validation and must not be retried
	payload, err := json.Marshal(dto.FeedbackMessage{
		ReportDate:     time.Now().UTC(),
		FeedbackStatus: types.FeedbackStatusPaid,
	})
	require.NoError(t, err)

	err = consumer.handleMessage(message.NewMessage("msg-3", payload))
	assert.NoError(t, err)

	records, err := feedbackStore.ListByExternalOrderRef(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, records)
}
