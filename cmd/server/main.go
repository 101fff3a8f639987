package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/invopeak/fakturaserie/internal/api"
	v1 "github.com/invopeak/fakturaserie/internal/api/v1"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/consumer"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/pubsub"
	kafkaPubsub "github.com/invopeak/fakturaserie/internal/pubsub/kafka"
	memoryPubsub "github.com/invopeak/fakturaserie/internal/pubsub/memory"
	"github.com/invopeak/fakturaserie/internal/pubsub/router"
	"github.com/invopeak/fakturaserie/internal/publisher"
	"github.com/invopeak/fakturaserie/internal/repository"
	"github.com/invopeak/fakturaserie/internal/scheduler"
	"github.com/invopeak/fakturaserie/internal/service"
	"github.com/invopeak/fakturaserie/internal/types"
)

func main() {
	// load .env for local development, missing file is fine
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	if cfg.Deployment.Mode == types.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatalw("server exited with error", "error", err)
	}
}

func run(cfg *config.Configuration, log *logger.Logger) error {
	db, err := postgres.NewClient(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	pubSub, err := newPubSub(cfg, log)
	if err != nil {
		return err
	}
	defer pubSub.Close()

	params := service.ServiceParams{
		Logger:         log,
		Config:         cfg,
		DB:             db,
		Cache:          cache.NewInMemoryCache(),
		SeriesRepo:     repository.NewSeriesRepository(db, log),
		InvoiceRepo:    repository.NewInvoiceRepository(db, log),
		FeedbackRepo:   repository.NewFeedbackRepository(db, log),
		LeaseRepo:      repository.NewLeaseRepository(db, log),
		OrderPublisher: publisher.NewOrderPublisher(cfg, pubSub, log),
		EventPublisher: publisher.NewEventPublisher(cfg, pubSub, log),
	}

	seriesService := service.NewSeriesService(params)
	cancellationService := service.NewCancellationService(params)
	dispatchService := service.NewDispatchService(params)
	feedbackService := service.NewFeedbackService(params)

	// inbound feedback from the external billing system
	msgRouter, err := router.NewRouter(log)
	if err != nil {
		return err
	}
	feedbackConsumer := consumer.NewFeedbackConsumer(feedbackService, log)
	feedbackConsumer.RegisterHandler(msgRouter, cfg, pubSub)

	// periodic dispatch loops, guarded by cluster-wide leases
	sched := scheduler.New(params.LeaseRepo, cfg.Scheduler.LeaseTTL, log)
	sched.Register(scheduler.Job{
		Name:     "billing_dispatch",
		Interval: cfg.Scheduler.BillingInterval,
		Run: func(ctx context.Context) error {
			_, err := dispatchService.RunBillingDispatch(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "crediting_dispatch",
		Interval: cfg.Scheduler.CreditingInterval,
		Run: func(ctx context.Context) error {
			_, err := dispatchService.RunCreditDispatch(ctx)
			return err
		},
	})

	handlers := api.Handlers{
		Series:  v1.NewSeriesHandler(seriesService, cancellationService, log),
		Invoice: v1.NewInvoiceHandler(feedbackService, log),
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewRouter(handlers),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := msgRouter.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	go func() {
		log.Infow("starting http server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sched.Start(ctx)

	select {
	case err := <-errCh:
		stop()
		sched.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown failed", "error", err)
	}

	if err := msgRouter.Close(); err != nil {
		log.Errorw("message router shutdown failed", "error", err)
	}

	return nil
}

func newPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	if cfg.Kafka.UseInMemory {
		log.Warn("using in-memory pubsub, messages will not leave this process")
		return memoryPubsub.NewPubSub(log), nil
	}
	return kafkaPubsub.NewPubSub(cfg, log)
}
