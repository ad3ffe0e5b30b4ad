package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76"

	"github.com/trailhead/tours-api/internal/http/handlers"
	httpmw "github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/platform/mailer"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
	"github.com/trailhead/tours-api/internal/service"
	"github.com/trailhead/tours-api/pkg/config"
	"github.com/trailhead/tours-api/pkg/database"
	"github.com/trailhead/tours-api/pkg/events"
	"github.com/trailhead/tours-api/pkg/logger"
	mw "github.com/trailhead/tours-api/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	cfg := config.Load()
	stripe.Key = cfg.Stripe.SecretKey

	// Connect to the document store
	ctx := context.Background()
	client, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("MongoDB disconnect error", "error", err)
		}
	}()

	db := client.Database(cfg.Mongo.Database)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	// Redis backs the rate limiter; the API runs without it.
	rdb := connectRedis(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	// Event bus; local development works without a broker.
	var eventBus events.EventBus
	if bus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("NATS unavailable, events will be dropped", "error", err)
		eventBus = events.NewNoopBus()
	} else {
		eventBus = bus
	}
	defer eventBus.Close()

	// Outside production, mirror the event stream into the log.
	if !cfg.IsProduction() {
		if err := eventBus.Subscribe(">", func(msg *events.Message) {
			logger.Debug("Event observed", "subject", msg.Subject, "data", string(msg.Data))
		}); err != nil {
			logger.Warn("Failed to subscribe to event stream", "error", err)
		}
	}

	mail := selectMailer(cfg)

	// Repositories
	userRepo := mongodb.NewUserRepository(db)
	tourRepo := mongodb.NewTourRepository(db)
	reviewRepo := mongodb.NewReviewRepository(db)
	bookingRepo := mongodb.NewBookingRepository(db)

	// Services
	authService := service.NewAuthService(userRepo, mail, eventBus, cfg)
	userService := service.NewUserService(userRepo)
	tourService := service.NewTourService(tourRepo)
	reviewService := service.NewReviewService(reviewRepo, tourRepo, eventBus)
	bookingService := service.NewBookingService(bookingRepo, tourRepo, userRepo, eventBus, cfg)

	h := handlers.New(authService, userService, tourService, reviewService, bookingService, cfg)

	// Router
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(httpmw.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, !cfg.IsProduction()))

	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API server", "port", cfg.Server.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL, rate limiting disabled", "error", err)
		return nil
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		rdb.Close()
		return nil
	}
	return rdb
}

func selectMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSendMailer(cfg.Email.MailerSendKey, cfg.Email.SMTPFromName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}
}
