package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	auth "github.com/goliatone/go-app-auth"
	"github.com/goliatone/go-app-auth/graphql"
	"github.com/goliatone/go-app-auth/push/expo"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := auth.LoadSettings()
	if err != nil {
		log.WithError(err).Fatal("load settings")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *auth.Settings, log *logrus.Logger) error {
	logger := auth.NewLogrusLogger(log, "auth")

	db, err := auth.OpenDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := auth.NewRepositoryManager(db)
	repos.MustValidate()
	if err := repos.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := auth.NewCollector(reg)

	tokens, err := auth.NewTokenService(cfg, logger.Named("tokens"))
	if err != nil {
		return err
	}
	defer tokens.Close()

	revocations := auth.NewRedisRevocationList(rdb, cfg.RevocationKeyPrefix, cfg.RevocationTimeout)

	guard := auth.NewGuard(cfg, tokens, revocations,
		auth.NewIdentityResolver(repos.Users(), logger.Named("identity")),
		auth.WithGuardLogger(logger.Named("guard")),
		auth.WithGuardMetrics(metrics),
	)
	roles := auth.NewRoleGuard(auth.DefaultRoleRegistry(), cfg.ContextKey, logger.Named("roles"), metrics)

	auther := auth.NewAuthenticator(repos.Users(), tokens, revocations,
		auth.WithAutherLogger(logger.Named("auther")),
		auth.WithPasswordHasher(auth.NewPasswordHasher(cfg.BcryptCost)),
		auth.WithPhoneRegion(cfg.DefaultPhoneRegion),
	)
	guests := auth.NewGuestDeviceService(repos, logger.Named("guests"))
	notifications := auth.NewNotificationService(repos.GuestDevices(), pushProvider(cfg, logger), logger.Named("notifications"),
		auth.WithNotificationMetrics(metrics),
	)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:      "go-app-auth",
			UnescapePath: true,
		}))
	})

	httpAuth := auth.NewHTTPAuthenticator(guard, roles, cfg, logger.Named("http"))

	app := srv.Router()
	app.Get("/metrics", router.HandlerFromHTTP(auth.MetricsHandler(reg))).SetName("metrics")

	auth.RegisterRoutes(app, auth.NewController(httpAuth, auther, guests, notifications,
		auth.WithControllerLogger(logger.Named("controller")),
	))

	graphql.Mount(app, "/graphql", graphql.NewResolver(graphql.Services{
		Guard:         guard,
		Roles:         roles,
		Auther:        auther,
		Guests:        guests,
		Notifications: notifications,
		Logger:        logger.Named("graphql"),
		ContextKey:    cfg.ContextKey,
	}))

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "environment", cfg.Environment)
		errc <- srv.Serve(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func pushProvider(cfg *auth.Settings, logger *auth.LogrusLogger) auth.PushProvider {
	switch cfg.PushProvider {
	case "expo":
		return expo.New(cfg.ExpoHost, cfg.ExpoAccessToken, &http.Client{Timeout: 15 * time.Second})
	default:
		return auth.NewLogPushProvider(logger.Named("push"))
	}
}
