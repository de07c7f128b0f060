package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Durgesh2022/yoga-app/internal/astrologer"
	"github.com/Durgesh2022/yoga-app/internal/booking"
	"github.com/Durgesh2022/yoga-app/internal/config"
	"github.com/Durgesh2022/yoga-app/internal/db"
	"github.com/Durgesh2022/yoga-app/internal/email"
	"github.com/Durgesh2022/yoga-app/internal/events"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/obs"
	"github.com/Durgesh2022/yoga-app/internal/payment"
	"github.com/Durgesh2022/yoga-app/internal/server"
	"github.com/Durgesh2022/yoga-app/internal/session"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

// @title Sattva API
// @version 1.0
// @description Wallet, payments and bookings for the yoga and astrology app.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting Sattva backend")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, "sattva-api", cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		logger.Fatalf("Failed to init tracing: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to broker: %v", err)
		}
		publisher = p
		logger.Info("Publishing domain events", "exchange", cfg.AMQPExchange)
	}
	defer publisher.Close()

	sender := email.NewSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName,
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	emailService := email.New(rdb, sender)
	defer emailService.Close()
	go emailService.Start(ctx)

	userRepo := user.NewRepository(database)
	userService := user.NewService(userRepo, session.NewRedisStore(rdb), cfg.JWTSecret)

	walletService := wallet.NewService(wallet.NewRepository(database), publisher)

	paymentService := payment.NewService(
		payment.NewRepository(database),
		payment.NewRazorpayGateway(cfg.Gateway),
		walletService,
		userRepo,
		emailService,
		publisher,
		payment.Options{Currency: cfg.Gateway.DefaultCurrency, MaxAmount: cfg.Gateway.MaxTopUp},
	)
	presenters := payment.NewPresenters(cfg.Gateway.KeyID, cfg.Gateway.CheckoutURL, cfg.EmailFromName)

	astrologerService := astrologer.NewService(astrologer.NewRepository(database), userRepo)
	bookingService := booking.NewService(
		booking.NewRepository(database),
		walletService,
		astrologerService,
		userRepo,
		emailService,
		publisher,
	)

	reconciler := payment.NewReconciler(paymentService, cfg.ReconcilePendingAfter, cfg.OrderExpiry)
	if err := reconciler.Start(ctx, cfg.ReconcileSchedule); err != nil {
		logger.Fatalf("Failed to start reconciler: %v", err)
	}

	srv := server.New(cfg, server.Handlers{
		User:       user.NewHandler(userService),
		Wallet:     wallet.NewHandler(walletService, cfg.Gateway.DefaultCurrency),
		Payment:    payment.NewHandler(paymentService, presenters),
		Booking:    booking.NewHandler(bookingService),
		Astrologer: astrologer.NewHandler(astrologerService),
		Email:      emailService,
		Checks: map[string]server.HealthCheck{
			"postgres": database.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	reconciler.Stop()
	cancel()

	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("Error flushing traces: %v", err)
	}

	logger.Info("Server stopped")
}
