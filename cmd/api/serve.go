package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	v1 "go-mentorchat/cmd/api/router/v1"
	queueAdapter "go-mentorchat/internal/infrastructure/queue/adapter"
	"go-mentorchat/internal/infrastructure/realtime"
	"go-mentorchat/internal/pkg/chat/application/port"
	"go-mentorchat/internal/pkg/chat/application/task"
	"go-mentorchat/internal/pkg/chat/application/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	in, err := openStore(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := in.connectRedis(cfg); err != nil {
		return err
	}

	router := realtime.NewRouter()

	var notifier port.Notifier
	if in.redis != nil {
		bus := realtime.NewRedisBus(in.redis, cfg.Node.ID, logger)
		router.SetBus(bus)
		go func() {
			if err := bus.Run(ctx, router.DeliverLocal); err != nil {
				logger.Error("room bus stopped", zap.Error(err))
			}
		}()

		client, err := queueAdapter.NewAsynqClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		notifier = task.NewQueueNotifier(client)
	} else {
		logger.Warn("redis.url is empty: running single-node, notifications are logged inline")
		notifier = task.NewSinkNotifier(task.NewLogSink(logger))
	}

	svc := usecase.NewService(usecase.Dependencies{
		Repo:             in.repo,
		Broadcaster:      router,
		Notifier:         notifier,
		Audit:            in.audit,
		Cache:            in.cache(),
		Logger:           logger,
		UnreadTTL:        cfg.Cache.UnreadTTL,
		PageSize:         cfg.Chat.PageSize,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	})

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
			"node":   cfg.Node.ID,
		})
	})
	v1.RegisterRoutes(r, svc, router, cfg.Server, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("driver", cfg.Database.Driver),
			zap.String("node", cfg.Node.ID))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	err = srv.Shutdown(shutdownCtx)

	// hijacked websocket connections are not tracked by Shutdown
	router.Close()
	drainSockets(shutdownCtx, router)
	svc.SendMessage.Wait()
	return err
}

// drainSockets waits for socket handlers to detach, so their exits reach the store before it
// is closed.
func drainSockets(ctx context.Context, router *realtime.Router) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for router.Sessions() > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("sockets still open at shutdown", zap.Int("sessions", router.Sessions()))
			return
		case <-ticker.C:
		}
	}
}
