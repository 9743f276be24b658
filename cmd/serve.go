package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/billing-backend/internal/config"
	"github.com/jmehdipour/billing-backend/internal/db"
	httpSrv "github.com/jmehdipour/billing-backend/internal/http"
	"github.com/jmehdipour/billing-backend/internal/identity"
	"github.com/jmehdipour/billing-backend/internal/logger"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		// Startup schema evolution is fatal on failure: serving traffic
		// against an unmigrated tenants table is worse than not starting.
		tenantsRepo := repository.NewTenantsRepository(mysqlDB)
		if err := tenantsRepo.EnsureSubjectColumn(cmd.Context()); err != nil {
			return fmt.Errorf("ensure subject column: %w", err)
		}

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		provider := identity.NewHTTPProvider(
			cfg.Identity.BaseURL,
			cfg.Identity.ServiceKey,
			cfg.Identity.TimeoutMs,
			cfg.Identity.Breaker.FailThreshold,
			cfg.Identity.Breaker.OpenForMs,
		)

		server := httpSrv.NewServer(cfg, mysqlDB, redisClient, provider)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
