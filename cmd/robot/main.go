package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelnikov/contentflow/internal/config"
	"github.com/nmelnikov/contentflow/internal/recordproc"
	redisqueue "github.com/nmelnikov/contentflow/pkg/contentflow/queue/redis"
	"github.com/nmelnikov/contentflow/pkg/contentflow/robot"
)

func main() {
	cfg, err := config.LoadRobot()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	pool, err := pgxpool.New(ctx, cfg.DB.DatabaseURL())
	if err != nil {
		slog.Error("Failed to create connection pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		slog.Error("Failed to ping database", "err", err)
		os.Exit(1)
	}

	client := robot.NewClient(robot.ClientConfig{
		LoginURL:  cfg.LoginURL,
		ReportURL: cfg.ReportURL,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err := client.Login(ctx); err != nil {
		slog.Error("Failed to log in", "err", err)
		os.Exit(1)
	}

	runner := robot.NewRunner(queue, recordproc.New(pool), client,
		robot.WithDequeueTimeout(cfg.DequeueTimeout))

	if err := runner.Run(ctx); err != nil {
		slog.Error("Robot stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("Robot exiting")
}
