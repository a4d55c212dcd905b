package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/email"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/mailbox"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// stores groups the repositories the service runs on.
type stores struct {
	tickets       repository.TicketRepository
	messages      repository.TicketMessageRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if _, err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongo.Close(context.Background())

	repos := buildStores(pg, logger)
	mirror, err := buildMirror(cfg.Mailbox, redis, mongo, logger)
	if err != nil {
		return err
	}
	sink := buildEmailSink(cfg, logger)

	guard := auth.NewGuard(cfg.Admin.Emails...)
	runner := worker.NewTaskRunner(logger.Named("tasks"), cfg.Tasks.Timeout())
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAlertService(dispatcher, sink, repos.users, runner, logger.Named("alerts")).RegisterHandlers()

	bridge := service.NewMailboxBridge(mirror, repos.users, service.MailboxBridgeConfig{
		Category:    cfg.Mailbox.Category,
		SenderLabel: cfg.Mailbox.SenderLabel,
		Timeout:     cfg.Mailbox.Timeout(),
	}, logger.Named("mailbox"))

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       repos.tickets,
		MessageRepo:      repos.messages,
		NotificationRepo: repos.notifications,
		UserRepo:         repos.users,
		Guard:            guard,
		Bridge:           bridge,
		Email:            sink,
		Dispatcher:       dispatcher,
		Logger:           logger.Named("tickets"),
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
			"mongo":    mongo,
		}, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notifications:  handlers.NewNotificationsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, 0)),
		Guard:          guard,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := runner.Wait(drainCtx); err != nil {
		logger.Warn("background tasks still running at exit", zap.Error(err))
	}
	return nil
}

func buildStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	if !pg.Enabled() {
		logger.Warn("using in-memory ticket store; data is lost on restart")
		mem := memory.NewStore()
		return stores{
			tickets:       mem.Tickets(),
			messages:      mem.Messages(),
			notifications: mem.Notifications(),
			users:         mem.Users(),
		}
	}
	return stores{
		tickets:       repository.NewTicketRepository(pg.Pool),
		messages:      repository.NewTicketMessageRepository(pg.Pool),
		notifications: repository.NewNotificationRepository(pg.Pool),
		users:         repository.NewUserRepository(pg.Pool),
	}
}

func buildMirror(cfg config.MailboxConfig, redis *persistence.Redis, mongo *persistence.Mongo, logger *zap.Logger) (service.MailboxMirror, error) {
	switch cfg.Backend {
	case config.MirrorBackendMongo:
		if !mongo.Enabled() {
			return nil, errors.New("MAILBOX_MIRROR_BACKEND=mongo requires MONGO_URI")
		}
		return mailbox.NewMongoMirror(mongo.Database, cfg.MongoCollection), nil
	case config.MirrorBackendRedis:
		if !redis.Enabled() {
			return nil, errors.New("MAILBOX_MIRROR_BACKEND=redis requires REDIS_ADDR")
		}
		return mailbox.NewRedisStreamMirror(redis.Client, cfg.RedisStream), nil
	default:
		return mailbox.NewLogMirror(logger.Named("mailbox")), nil
	}
}

func buildEmailSink(cfg *config.Config, logger *zap.Logger) service.EmailSink {
	if !cfg.SMTP.Enabled() {
		logger.Warn("SMTP_HOST not set; emails are logged instead of sent")
		return email.NewLogSink(logger.Named("email"))
	}
	return email.NewSMTPSink(cfg.SMTP, cfg.Admin.Emails, logger.Named("email"))
}
