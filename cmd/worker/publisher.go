package worker

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/billing-backend/internal/config"
	"github.com/jmehdipour/billing-backend/internal/db"
	"github.com/jmehdipour/billing-backend/internal/kafka"
	"github.com/jmehdipour/billing-backend/internal/logger"
	"github.com/jmehdipour/billing-backend/internal/metrics"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmehdipour/billing-backend/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var publisherCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Publish pending outbox events to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()

		pub := worker.NewPublisher(
			repository.NewOutboxRepository(dbx),
			producer,
			cfg.Publisher.BatchSize,
			cfg.Publisher.PollInterval,
			logger.Log,
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Log.Info("outbox publisher started")
		if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Log.Info("outbox publisher stopped")
		return nil
	},
}
