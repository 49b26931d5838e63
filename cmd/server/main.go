package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelnikov/contentflow/internal/api"
	"github.com/nmelnikov/contentflow/internal/config"
	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
	redisqueue "github.com/nmelnikov/contentflow/pkg/contentflow/queue/redis"
	memoryrepo "github.com/nmelnikov/contentflow/pkg/contentflow/repo/memory"
	postgresrepo "github.com/nmelnikov/contentflow/pkg/contentflow/repo/postgres"
	fsstorage "github.com/nmelnikov/contentflow/pkg/contentflow/storage/fs"
	memorystorage "github.com/nmelnikov/contentflow/pkg/contentflow/storage/memory"
	s3storage "github.com/nmelnikov/contentflow/pkg/contentflow/storage/s3"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repo, err := buildRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize repository", "err", err)
		os.Exit(1)
	}

	blobStore, err := buildBlobStore(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage backend", "err", err)
		os.Exit(1)
	}

	queue, err := redisqueue.New(redisqueue.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Queue:    cfg.Redis.Queue,
	})
	if err != nil {
		slog.Error("Failed to connect to redis", "err", err)
		os.Exit(1)
	}

	svc, err := contentflow.New(
		contentflow.WithRepository(repo),
		contentflow.WithBlobStore(blobStore),
		contentflow.WithTaskQueue(queue),
	)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenService([]byte(cfg.JWT.Secret), cfg.JWT.TTL, repo)

	if err := ensureAdminAccount(ctx, svc, repo, cfg); err != nil {
		slog.Error("Failed to ensure admin account", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(svc, tokens),
	}

	go func() {
		slog.Info("Content server starting", "port", cfg.Port, "repo", cfg.RepoKind, "storage", cfg.Storage.Kind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}

func buildRepository(ctx context.Context, cfg config.ServerConfig) (contentflow.Repository, error) {
	switch cfg.RepoKind {
	case "memory":
		return memoryrepo.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DB.DatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := postgresrepo.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgresrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unknown repository kind %q", cfg.RepoKind)
	}
}

func buildBlobStore(cfg config.StorageConfig) (contentflow.BlobStore, error) {
	switch cfg.Kind {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: cfg.BaseDir})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:          cfg.Region,
			Bucket:          cfg.BucketName,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
			UsePathStyle:    cfg.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// ensureAdminAccount registers the bootstrap administrator on first start so
// further accounts can be created through the API.
func ensureAdminAccount(ctx context.Context, svc contentflow.Service, repo contentflow.Repository, cfg config.ServerConfig) error {
	_, err := repo.GetAccountByUsername(ctx, cfg.AdminUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, contentflow.ErrAccountNotFound) {
		return err
	}

	_, err = svc.RegisterAccount(ctx, contentflow.RegisterAccountRequest{
		Username: cfg.AdminUser,
		Email:    cfg.AdminUser + "@localhost",
		Password: cfg.AdminPass,
		Role:     contentflow.RoleAdmin,
	})
	if err != nil {
		return err
	}
	slog.Info("Bootstrap admin account created", "username", cfg.AdminUser)
	return nil
}
