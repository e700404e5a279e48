package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/auth"
	"github.com/ir-comercio/ir-comercio-sistema/internal/config"
	"github.com/ir-comercio/ir-comercio-sistema/internal/db"
	httphandler "github.com/ir-comercio/ir-comercio-sistema/internal/http"
	"github.com/ir-comercio/ir-comercio-sistema/internal/http/handlers"
	"github.com/ir-comercio/ir-comercio-sistema/internal/middleware"
	"github.com/ir-comercio/ir-comercio-sistema/internal/policy"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
	"github.com/ir-comercio/ir-comercio-sistema/internal/sessionclient"
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	// Run migrations
	if err := db.Migrate(database); err != nil {
		return err
	}

	// Login rate limiter: Redis when configured so limits hold across instances
	loginLimiter, closeLimiter := newLoginLimiter(ctx, cfg, logger)
	defer closeLimiter()

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	sessionRepo := repo.NewSessionRepo(database)
	attemptRepo := repo.NewLoginAttemptRepo(database)

	// Initialize the session authority
	allowList := policy.NewAllowList(cfg.AuthorizedIPList())
	if allowList.Len() == 0 {
		logger.Warn("AUTHORIZED_IPS is empty; every login will be rejected")
	}
	pol := auth.Policy{
		AllowList:  allowList,
		Hours:      policy.NewBusinessHours(cfg.Location(), cfg.BusinessOpenHour, cfg.BusinessCloseHour),
		Clock:      policy.SystemClock{},
		SessionTTL: cfg.SessionTTL(),
	}
	auditor := auth.NewAuditor(attemptRepo, logger)
	service := auth.NewService(userRepo, deviceRepo, sessionRepo, auditor, auth.NewPasswordHasher(cfg.BcryptCost), pol, logger)
	verifier := auth.NewVerifier(sessionRepo, pol, logger)

	// Downstream apps verify sessions through the portal over HTTP
	sessions := sessionclient.New(cfg.PortalURL, cfg.VerifyTimeout())

	// Create router
	router := httphandler.NewRouter(httphandler.Handlers{
		Auth:     handlers.NewAuthHandler(service, verifier, pol, logger),
		Orders:   handlers.NewOrderHandler(repo.NewOrderRepo(database), logger),
		Products: handlers.NewProductHandler(repo.NewProductRepo(database), logger),
		Health:   handlers.NewHealthHandler(httphandler.AvailableApps(), cfg.Env, database),
	}, httphandler.Deps{
		Logger:       logger,
		Sessions:     sessions,
		LoginLimiter: loginLimiter,
	})

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Env),
			zap.String("portal_url", cfg.PortalURL),
			zap.Int("authorized_ips", allowList.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Drain audit records and activity touches still in flight
	service.Wait()
	verifier.Wait()

	logger.Info("server exited")
	return nil
}

// newLoginLimiter returns the shared Redis limiter when REDIS_ADDR is set and reachable,
// otherwise the in-process sliding window.
func newLoginLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (middleware.Limiter, func()) {
	window := cfg.LoginRateWindow()

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("login rate limiter using redis", zap.String("addr", cfg.RedisAddr))
			return middleware.NewRedisLimiter(client, "login", window, cfg.LoginRateLimit), func() { _ = client.Close() }
		}
		logger.Warn("redis unreachable; falling back to in-memory login rate limiter",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
	}

	limiter := middleware.NewRateLimiter(window, cfg.LoginRateLimit)
	return limiter, limiter.Stop
}
