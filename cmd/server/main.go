package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/api"
	"github.com/parley-hq/parley/internal/blob"
	"github.com/parley-hq/parley/internal/config"
	"github.com/parley-hq/parley/internal/db"
	"github.com/parley-hq/parley/internal/observ"
	"github.com/parley-hq/parley/internal/repository/postgres"
	redisrepo "github.com/parley-hq/parley/internal/repository/redis"
	"github.com/parley-hq/parley/internal/service"
	"github.com/parley-hq/parley/internal/task"
	"github.com/parley-hq/parley/internal/transcribe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	pool := database.Pool()
	channelStore := postgres.NewChannelStore(pool)
	membershipStore := postgres.NewMembershipStore(pool)
	inviteStore := postgres.NewInviteStore(pool)
	messageStore := postgres.NewMessageStore(pool)
	userStore := postgres.NewUserStore(pool)
	callStore := postgres.NewCallStore(pool)
	presenceStore := redisrepo.NewPresenceStore(rdb, cfg.PresenceTTL)

	// Recording artifacts land on local disk and are served back under
	// /files. Swapping in an object-store implementation of blob.Store
	// moves them off-box without touching anything else.
	blobs := blob.NewDir(cfg.BlobDir, cfg.BlobBaseURL)
	transcriber := transcribe.NewHTTPClient(cfg.TranscriberURL)

	// The recording pipeline: HTTP handlers enqueue, the embedded
	// worker consumes. Both sides ride the same Redis instance.
	taskClient, err := task.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("create task client: %w", err)
	}
	defer taskClient.Close()

	worker, err := task.NewServer(cfg.RedisURL, cfg.AsynqConcurrency, logger)
	if err != nil {
		return fmt.Errorf("create task server: %w", err)
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(task.TypeProcessRecording,
		task.NewHandler(callStore, blobs, transcriber, logger).HandleProcessRecording)
	if err := worker.Start(mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	defer worker.Shutdown()

	channels := service.NewChannels(channelStore, membershipStore, userStore, logger)
	membership := service.NewMembership(channelStore, membershipStore, userStore, messageStore, logger)
	invites := service.NewInvites(channelStore, membershipStore, inviteStore, userStore, messageStore, logger, cfg.AppBaseURL)
	messages := service.NewMessages(channelStore, membershipStore, messageStore, logger)
	presence := service.NewPresence(presenceStore, logger)
	calls := service.NewCalls(channelStore, membershipStore, callStore, blobs, taskClient, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())
	srv.Static("/files", cfg.BlobDir)

	api.RegisterRoutes(srv, api.Handlers{
		Channels:   api.NewChannelHandler(channels, logger),
		Membership: api.NewMembershipHandler(membership, logger),
		Invites:    api.NewInviteHandler(invites, logger),
		Messages:   api.NewMessageHandler(messages, logger),
		Presence:   api.NewPresenceHandler(presence, logger),
		Calls:      api.NewCallHandler(calls, logger),
	}, userStore, cfg.JWTSecret, logger)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("parley listening",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	// In-flight requests get a grace period; the deferred
	// worker.Shutdown then drains any running recording jobs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
