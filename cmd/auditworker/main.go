// Command auditworker consumes audit events from Kafka and materializes
// them into postgres, giving downstream consumers (SIEM export, compliance
// reporting) a queryable copy decoupled from the API servers.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"estateproof/internal/platform/config"
	kafkaConsumer "estateproof/internal/platform/kafka/consumer"
	"estateproof/internal/platform/logger"
	"estateproof/pkg/platform/audit"
	auditConsumer "estateproof/pkg/platform/audit/consumer"
	auditpg "estateproof/pkg/platform/audit/store/postgres"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("audit worker exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if !cfg.Kafka.Enabled() {
		return errors.New("KAFKA_BROKERS must be set")
	}
	if cfg.Postgres.URL == "" {
		return errors.New("DATABASE_URL must be set")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	if err := db.PingContext(startupCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	store := auditpg.New(db)

	router := auditConsumer.NewRouter(log)
	router.Register(audit.CategoryCompliance, auditConsumer.NewComplianceHandler(store, log))
	router.Register(audit.CategorySecurity, auditConsumer.NewSecurityHandler(store, log))
	router.Register(audit.CategoryOperations, auditConsumer.NewOpsHandler(store, log))

	c, err := kafkaConsumer.New(kafkaConsumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.ConsumerGroup,
		Topics:  audit.Topics(),
	}, router, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("audit worker consuming",
		"group", cfg.Kafka.ConsumerGroup,
		"topics", audit.Topics(),
	)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("audit worker stopped")
	return nil
}
