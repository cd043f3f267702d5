package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	queueAdapter "go-mentorchat/internal/infrastructure/queue/adapter"
	"go-mentorchat/internal/pkg/chat/application/task"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume notification tasks from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Redis.URL == "" {
			return errors.New("worker requires redis.url")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := queueAdapter.NewAsynqServer(cfg.Redis.URL, cfg.Queue, logger)
		if err != nil {
			return err
		}
		task.RegisterNotifyTask(srv, task.NewLogSink(logger))

		logger.Info("worker started", zap.Int("concurrency", cfg.Queue.Concurrency), zap.String("queues", cfg.Queue.Queues))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
