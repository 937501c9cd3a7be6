package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	notifconsumer "parkly/internal/notifications/consumer"
	"parkly/internal/notifications/events"
	notifhandler "parkly/internal/notifications/handler"
	notifrepository "parkly/internal/notifications/repository"
	notifservice "parkly/internal/notifications/service"
	paymenthandler "parkly/internal/payments/handler"
	paymentrepository "parkly/internal/payments/repository"
	paymentservice "parkly/internal/payments/service"
	paymentvalidator "parkly/internal/payments/validator"
	pricinghandler "parkly/internal/pricing/handler"
	pricingrepository "parkly/internal/pricing/repository"
	pricingservice "parkly/internal/pricing/service"
	pricingvalidator "parkly/internal/pricing/validator"
	reshandler "parkly/internal/reservations/handler"
	resrepository "parkly/internal/reservations/repository"
	resservice "parkly/internal/reservations/service"
	resvalidator "parkly/internal/reservations/validator"
	spothandler "parkly/internal/spots/handler"
	spotrepository "parkly/internal/spots/repository"
	spotservice "parkly/internal/spots/service"
	spotvalidator "parkly/internal/spots/validator"
	userhandler "parkly/internal/users/handler"
	userrepository "parkly/internal/users/repository"
	userservice "parkly/internal/users/service"
	uservalidator "parkly/internal/users/validator"
	"parkly/pkg/app"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	"parkly/pkg/contracts"
)

const ServiceName = "parking"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Parking service")
	cfg.SetMongo()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiration)
	publisher := initPublisher(cfg)
	defer publisher.Close()

	reservations, notifications, handlers := initServices(cfg, tokens, publisher)

	sweeper := startSweep(cfg, reservations)
	defer sweeper.Stop()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	startConsumer(consumerCtx, cfg, notifications)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(tokens, handlers...)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("No Kafka brokers configured, domain events disabled")
		return events.NoopPublisher{}
	}

	publisher, err := events.NewKafkaPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}
	cfg.Log.Info("Event publisher initialized", "topic", cfg.NotificationsTopic)
	return publisher
}

func initServices(cfg *config.Config, tokens *auth.TokenManager, publisher events.Publisher) (resservice.ReservationService, notifservice.NotificationService, []contracts.Handler) {
	spotRepo := spotrepository.NewMongoSpotRepository(cfg)
	spots := spotservice.NewSpotService(spotRepo, spotvalidator.NewSpotValidator(cfg.Log), cfg)

	pricingValidator, err := pricingvalidator.NewPricingRuleValidator(cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to build pricing validator", "error", err)
	}
	pricing := pricingservice.NewPricingService(
		pricingrepository.NewMongoPricingRuleRepository(cfg),
		spots,
		pricingValidator,
		cfg,
	)

	reservations := resservice.NewReservationService(
		resrepository.NewMongoReservationRepository(cfg),
		resrepository.NewSpotLockRepository(cfg),
		spots,
		resvalidator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)

	payments := paymentservice.NewPaymentService(
		paymentrepository.NewMongoPaymentRepository(cfg),
		reservations,
		pricing,
		paymentvalidator.NewPaymentValidator(cfg.Log),
		publisher,
		cfg,
	)

	users := userservice.NewUserService(
		userrepository.NewMongoUserRepository(cfg),
		spots,
		uservalidator.NewUserValidator(cfg.Log),
		tokens,
		cfg,
	)

	notifications := notifservice.NewNotificationService(
		notifrepository.NewMongoNotificationRepository(cfg),
		cfg,
	)

	cfg.Log.Info("Parking services initialized", "database", cfg.MongoDatabaseName)

	handlers := []contracts.Handler{
		spothandler.NewSpotHandler(spots, cfg.Log),
		pricinghandler.NewPricingHandler(pricing, cfg.Log),
		reshandler.NewReservationHandler(reservations, cfg.Log),
		paymenthandler.NewPaymentHandler(payments, cfg.Log),
		userhandler.NewUserHandler(users, cfg.Log),
		notifhandler.NewNotificationHandler(notifications, cfg.Log),
	}
	return reservations, notifications, handlers
}

// startSweep schedules the job that finishes elapsed reservations and frees
// their spots. Sweep runs with a system identity so repository calls need no
// request context.
func startSweep(cfg *config.Config, reservations resservice.ReservationService) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		if _, err := reservations.Sweep(ctx); err != nil {
			cfg.Log.Error("Reservation sweep failed", "error", err)
		}
	})
	if err != nil {
		cfg.Log.Fatal("Failed to schedule reservation sweep", "spec", cfg.SweepSpec, "error", err)
	}

	c.Start()
	cfg.Log.Info("Reservation sweep scheduled", "spec", cfg.SweepSpec)
	return c
}

func startConsumer(ctx context.Context, cfg *config.Config, svc notifservice.NotificationService) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}

	consumer, err := notifconsumer.NewEventConsumer(cfg, svc)
	if err != nil {
		cfg.Log.Fatal("Failed to create notifications consumer", "error", err)
	}

	go func() {
		defer consumer.Close()
		consumer.Run(ctx)
	}()
}
