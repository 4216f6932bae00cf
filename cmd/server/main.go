package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careops/internal/auth"
	"careops/internal/automation"
	"careops/internal/calendar"
	"careops/internal/clock"
	"careops/internal/config"
	"careops/internal/database"
	"careops/internal/handlers"
	"careops/internal/logging"
	"careops/internal/notify"
	"careops/internal/observability"
	"careops/internal/scheduler"
	"careops/internal/secrets"
	"careops/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		// run has already released everything it acquired
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	cleanup := newShutdownStack(log, cfg.ShutdownTimeout)
	defer cleanup.close()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "careops", cfg.Environment, logging.Component(log, "otel"))
	if err != nil {
		return err
	}
	cleanup.push("tracer", shutdownTracer)

	// Initialize database
	db, err := database.Open(database.Options{DSN: cfg.DSN(), LogLevel: cfg.DBLogLevel}, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	cleanup.push("database", func(context.Context) error { return sqlDB.Close() })
	st := store.NewGormStore(db)

	box, err := secrets.NewBox(cfg.SecretKey)
	if err != nil {
		return err
	}
	if box == nil {
		log.Warn().Msg("SECRET_KEY not set, workspace credentials cannot be stored")
	}

	var bot *notify.TelegramBot
	if cfg.TelegramBotToken != "" {
		if bot, err = notify.NewTelegramBot(cfg.TelegramBotToken, cfg.TelegramRate); err != nil {
			return err
		}
	}
	registry := notify.NewRegistry(st, box, cfg.NotifyChannels, notify.Defaults{
		SendGridAPIKey: cfg.SendGridAPIKey,
		FromEmail:      cfg.SendGridFromEmail,
		FromName:       cfg.SendGridFromName,
		Telegram:       bot,
		AdminChatID:    cfg.TelegramChatID,
	}, logging.Component(log, "notify"))

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry, clock.System{})
	if err != nil {
		return err
	}

	engine := automation.NewEngine(st, registry, clock.System{}, logging.Component(log, "automation"), automation.Options{
		FrontendURL: cfg.FrontendURL,
	})

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		return err
	}
	sched := scheduler.New(logging.Component(log, "scheduler"), scheduler.Options{Location: loc, JobTimeout: cfg.JobTimeout})
	cleanup.push("scheduler", sched.Stop)
	if cfg.SchedulerEnabled {
		jobs := engine.Jobs(automation.Schedules{
			BookingReminders: cfg.BookingReminderAt,
			FormReminders:    cfg.FormReminderAt,
			InventoryChecks:  cfg.InventoryCheckAt,
		})
		if err := sched.Start(jobs...); err != nil {
			return err
		}
	}

	h := handlers.New(handlers.Deps{
		DB:                    db,
		Store:                 st,
		Engine:                engine,
		Notifiers:             registry,
		Scheduler:             sched,
		Issuer:                issuer,
		Box:                   box,
		Calendar:              calendar.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, box, logging.Component(log, "calendar")),
		Telegram:              bot,
		Log:                   logging.Component(log, "http"),
		TelegramWebhookSecret: cfg.TelegramWebhookSecret,
		AdminEmails:           cfg.AdminEmails,
	})

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestLogger(logging.Component(log, "http")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Configure trusted proxies
	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return err
	}
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	cleanup.push("http", srv.Shutdown)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	cleanup.close()
	log.Info().Msg("server stopped")
	return nil
}
