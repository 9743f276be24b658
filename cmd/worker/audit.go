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
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmehdipour/billing-backend/internal/worker"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Consume billing events into the ClickHouse audit table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "billing-audit"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			GroupID:  groupID,
			MinBytes: cfg.Kafka.MinBytes,
			MaxBytes: cfg.Kafka.MaxBytes,
			MaxWait:  cfg.Kafka.MaxWait,
		})
		defer consumer.Close()

		w := worker.NewAudit(consumer, repository.NewAuditRepository(chDB), logger.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Log.Info("audit worker started")
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Log.Info("audit worker stopped")
		return nil
	},
}
