package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-retry"

	"github.com/gatsis/gatsishub-backend/api/controllers"
	"github.com/gatsis/gatsishub-backend/api/routes"
	"github.com/gatsis/gatsishub-backend/internal/auth"
	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/internal/materials"
	"github.com/gatsis/gatsishub-backend/internal/messages"
	"github.com/gatsis/gatsishub-backend/internal/notifications"
	"github.com/gatsis/gatsishub-backend/internal/orders"
	"github.com/gatsis/gatsishub-backend/internal/quotas"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/migrate"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	if err := waitForDependency(context.Background(), "database", dbClient.Ping); err != nil {
		logg.Error(context.Background(), "database never became ready", err)
		os.Exit(1)
	}
	if err := waitForDependency(context.Background(), "redis", redisClient.Ping); err != nil {
		logg.Error(context.Background(), "redis never became ready", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	googleVerifier, err := auth.NewGoogleVerifier(cfg.Google)
	if err != nil {
		logg.Error(context.Background(), "failed to create google verifier", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(
		auth.NewRepository(dbClient.DB()),
		sessionManager,
		redisClient,
		googleVerifier,
		cfg.JWT,
		cfg.Password,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	materialsService, err := materials.NewService(materials.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create materials service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	messagesService, err := messages.NewService(messages.NewRepository(dbClient.DB()), dbClient, outboxService, cfg.Messaging)
	if err != nil {
		logg.Error(context.Background(), "failed to create messages service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	adminNotificationsService, err := notifications.NewAdminService(notifications.NewAdminRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create admin notifications service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		materials.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	quotasService, err := quotas.NewService(quotas.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create quotas service", err)
		os.Exit(1)
	}

	hub := changefeed.NewHub(cfg.Changefeed, logg)
	defer hub.Close()

	bridge, err := changefeed.NewBridge(redisClient, hub, cfg.Changefeed, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create change feed bridge", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "change feed bridge stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			Redis:          redisClient,
			SessionManager: sessionManager,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Auth:               authService,
			Materials:          materialsService,
			Messages:           messagesService,
			Notifications:      notificationsService,
			AdminNotifications: adminNotificationsService,
			Orders:             ordersService,
			Quotas:             quotasService,
			Hub:                hub,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// waitForDependency retries a readiness ping so a restart does not race the
// backends it depends on.
func waitForDependency(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(5, retry.NewConstant(2*time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
