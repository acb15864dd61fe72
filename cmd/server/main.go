package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/core"
	_ "github.com/JonMunkholm/opticfit/internal/core/tables" // Register all tables
	"github.com/JonMunkholm/opticfit/internal/database"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/ratelimit"
	"github.com/JonMunkholm/opticfit/internal/storage"
	"github.com/JonMunkholm/opticfit/internal/store"
	"github.com/JonMunkholm/opticfit/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"storage", cfg.Storage.Provider,
	)

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		migrator, db := database.FromPool(pool)
		err := migrator.Up(ctx)
		db.Close()
		if err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	service, err := core.NewService(store.NewPostgres(pool), core.OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	slog.Info("tables registered", "count", core.TableCount())

	// Background jobs stop when jobCtx is cancelled
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	limiter := newLimiter(jobCtx, cfg.Redis)

	sessions := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	login, err := auth.NewLoginService(auth.LoginConfig{
		PasswordHash:  cfg.Auth.AdminPasswordHash,
		PlainPassword: cfg.Auth.AdminPassword,
		MaxAttempts:   cfg.Rate.LoginAttempts,
		Window:        cfg.Rate.LoginWindow,
	}, sessions, limiter)
	if err != nil {
		slog.Error("failed to configure admin login", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.AdminPasswordHash == "" {
		slog.Warn("admin password is configured in plain text; set ADMIN_PASSWORD_HASH")
	}

	provider, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to configure image storage", "error", err)
		os.Exit(1)
	}
	var uploadsDir string
	if local, ok := provider.(*storage.LocalStorage); ok {
		uploadsDir = local.Dir()
	}

	server := web.NewServer(cfg, web.Deps{
		Service:    service,
		Login:      login,
		Images:     storage.NewImages(provider, cfg.Image.MaxSize),
		Limiter:    limiter,
		UploadsDir: uploadsDir,
	})

	go service.StartSessionSweeper(jobCtx, core.SweepConfig{
		IdleAfter: cfg.Resolve.SessionIdle,
		Interval:  cfg.Resolve.SweepInterval,
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ImportLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// newLimiter returns a Redis-backed limiter when Redis is configured and
// reachable, otherwise a per-process one swept in the background.
func newLimiter(ctx context.Context, cfg config.RedisConfig) ratelimit.Limiter {
	if cfg.Enabled() {
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			slog.Info("rate limiting backed by redis", "addr", cfg.Addr)
			return ratelimit.NewRedisLimiter(client)
		}
		slog.Warn("redis unavailable, falling back to in-memory rate limiting", "error", err)
		client.Close()
	}

	mem := ratelimit.NewMemoryLimiter()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := mem.Sweep(); n > 0 {
					slog.Debug("rate limiter swept", "keys", n)
				}
			}
		}
	}()
	return mem
}
