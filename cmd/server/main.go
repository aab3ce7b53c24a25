// Command server runs the property verification API. main stays thin: pick
// backends from config, wire the domain services, register the HTTP
// surfaces, then serve until a shutdown signal drains everything.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"estateproof/internal/admin/adapters"
	adminHandler "estateproof/internal/admin/handler"
	"estateproof/internal/docstore"
	"estateproof/internal/jwtauth"
	"estateproof/internal/jwtauth/revocation"
	"estateproof/internal/platform/config"
	"estateproof/internal/platform/httpserver"
	"estateproof/internal/platform/kafka/producer"
	"estateproof/internal/platform/logger"
	platformMetrics "estateproof/internal/platform/metrics"
	"estateproof/internal/platform/outbox"
	platformRedis "estateproof/internal/platform/redis"
	ratelimitConfig "estateproof/internal/ratelimit/config"
	ratelimitMetrics "estateproof/internal/ratelimit/metrics"
	ratelimitMiddleware "estateproof/internal/ratelimit/middleware"
	ratelimitModels "estateproof/internal/ratelimit/models"
	"estateproof/internal/ratelimit/service/requestlimit"
	"estateproof/internal/ratelimit/store/bucket"
	reviewerHandler "estateproof/internal/reviewer/handler"
	reviewerService "estateproof/internal/reviewer/service"
	reviewerStore "estateproof/internal/reviewer/store"
	verificationConfig "estateproof/internal/verification/config"
	verificationHandler "estateproof/internal/verification/handler"
	verificationMetrics "estateproof/internal/verification/metrics"
	verificationService "estateproof/internal/verification/service"
	"estateproof/internal/verification/store/records"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/audit/publishers/compliance"
	"estateproof/pkg/platform/audit/publishers/ops"
	"estateproof/pkg/platform/audit/publishers/security"
	auditmem "estateproof/pkg/platform/audit/store/memory"
	auditpg "estateproof/pkg/platform/audit/store/postgres"
	"estateproof/pkg/platform/tx"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	// --- backing stores ---

	var db *sql.DB
	if cfg.Postgres.URL != "" {
		var err error
		db, err = openPostgres(startupCtx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("postgres connected")
	}

	redisClient, err := platformRedis.New(startupCtx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	var recordStore verificationService.RecordStore
	switch {
	case db != nil:
		recordStore = records.NewPostgres(db)
	case redisClient != nil:
		recordStore = records.NewRedis(redisClient.Client)
	default:
		recordStore = records.NewInMemory()
		log.Warn("no DATABASE_URL or REDIS_URL set; records live in process memory")
	}

	var auditStore audit.Store
	var pgAudit *auditpg.Store
	if db != nil {
		pgAudit = auditpg.New(db)
		auditStore = pgAudit
	} else {
		auditStore = auditmem.NewInMemoryStore()
	}

	// --- kafka and the outbox relay ---

	var kafkaProducer *producer.Producer
	if cfg.Kafka.Enabled() {
		kafkaProducer, err = producer.New(producer.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: "estateproof-server",
		}, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaProducer.Close()
		if err := kafkaProducer.EnsureTopics(startupCtx, 3, audit.Topics()...); err != nil {
			return err
		}
	}

	// --- audit publishers ---

	compliancePublisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	defer func() { _ = compliancePublisher.Close() }()

	opsTracker := ops.NewTracker(auditStore,
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics()),
		ops.WithSampler(ops.NewSampler(cfg.Audit.OpsSampleRate)),
	)
	defer opsTracker.Close()

	securityAuditor := security.New(auditStore,
		security.WithLogger(log),
		security.WithBufferCapacity(cfg.Audit.SecurityBufferSize),
	)
	defer securityAuditor.Close()

	var relay *outbox.Relay
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	switch {
	case kafkaProducer != nil && pgAudit != nil:
		relay = outbox.New(pgAudit, kafkaProducer, log)
		go func() {
			if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay stopped", "error", err.Error())
			}
		}()
	case kafkaProducer != nil:
		log.Warn("kafka configured without postgres; outbox relay disabled")
	}

	// --- reviewer auth ---

	jwtService := jwtauth.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)

	var trl revocation.TokenRevocationList
	if redisClient != nil {
		trl = revocation.NewRedisTRL(redisClient.Client)
	} else {
		trl = revocation.NewMemoryTRL()
	}
	defer trl.Close()

	reviewers := reviewerStore.NewInMemory()
	seedEntries, err := reviewerStore.ParseSeedEntries(cfg.Auth.ReviewerSeed)
	if err != nil {
		return err
	}
	if len(seedEntries) == 0 {
		log.Warn("no reviewers seeded; set REVIEWER_SEED to provision accounts")
	} else {
		seeded, err := reviewerStore.Seed(reviewers, seedEntries)
		if err != nil {
			return err
		}
		log.Info("reviewers seeded", "count", len(seeded))
	}

	authService, err := reviewerService.New(reviewers, jwtService,
		reviewerService.WithLogger(log),
		reviewerService.WithSecurityAuditor(securityAuditor),
	)
	if err != nil {
		return err
	}

	// --- rate limiting ---

	rlConfig := ratelimitConfig.DefaultConfig()
	if cfg.RateLimit.SubmitLimit > 0 && cfg.RateLimit.SubmitWindow > 0 {
		rlConfig.SetLimit(ratelimitModels.ClassSubmit, cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow)
	}
	if cfg.RateLimit.LoginLimit > 0 && cfg.RateLimit.LoginWindow > 0 {
		rlConfig.SetLimit(ratelimitModels.ClassLogin, cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow)
	}
	limiterService, err := requestlimit.New(bucket.NewInMemoryBucketStore(),
		requestlimit.WithLogger(log),
		requestlimit.WithSecurityAuditor(securityAuditor),
		requestlimit.WithConfig(rlConfig),
		requestlimit.WithMetrics(ratelimitMetrics.New()),
	)
	if err != nil {
		return err
	}
	limiter := ratelimitMiddleware.New(limiterService, log,
		ratelimitMiddleware.WithDisabled(!cfg.RateLimit.Enabled))

	// --- document store ---

	documents := docstore.NewInMemory()
	resolver := docstore.NewCachedResolver(
		docstore.NewBreakerResolver(documents, docstore.WithBreakerLogger(log)),
		cfg.Docstore.CacheTTL,
	)

	// --- verification service ---

	svcOpts := []verificationService.Option{
		verificationService.WithLogger(log),
		verificationService.WithConfig(&verificationConfig.Config{
			OracleVerifiers: cfg.Pipeline.OracleVerifiers,
			StageTimeout:    cfg.Pipeline.StageTimeout,
			DrainTimeout:    cfg.Pipeline.DrainTimeout,

			HighValueThreshold:     cfg.Pipeline.HighValueThreshold,
			UrgentValueThreshold:   cfg.Pipeline.UrgentValueThreshold,
			CriticalValueThreshold: cfg.Pipeline.CriticalValueThreshold,
		}),
		verificationService.WithMetrics(verificationMetrics.New()),
		verificationService.WithCompliancePublisher(compliancePublisher),
		verificationService.WithStageTracker(opsTracker),
	}
	if cfg.Docstore.Strict {
		svcOpts = append(svcOpts, verificationService.WithDocumentResolver(docstore.NewExistsAdapter(resolver)))
	}
	if db != nil {
		svcOpts = append(svcOpts, verificationService.WithTxRunner(tx.NewSQLRunner(db)))
	}
	svc, err := verificationService.New(recordStore, svcOpts...)
	if err != nil {
		return err
	}

	// Requeue records parked in manual review before the last shutdown.
	if err := svc.Rehydrate(startupCtx); err != nil {
		return fmt.Errorf("rehydrate review queue: %w", err)
	}

	// --- HTTP surface ---

	appMetrics := platformMetrics.New()
	router := chi.NewRouter()

	verificationHandler.New(svc, log, appMetrics, jwtauth.NewJWTServiceAdapter(jwtService),
		verificationHandler.WithTokenRevocationChecker(revocation.NewChecker(trl)),
		verificationHandler.WithSubmitLimiter(limiter.RateLimit(ratelimitModels.ClassSubmit)),
	).Register(router)

	reviewerHandler.New(authService, log, appMetrics,
		reviewerHandler.WithLoginLimiter(limiter.RateLimit(ratelimitModels.ClassLogin)),
	).Register(router)

	adminHandler.New(cfg.Server.AdminToken, auditStore, trl, log,
		adminHandler.WithSecurityAuditor(securityAuditor),
		adminHandler.WithRevocationTTL(jwtService.TokenTTL()),
		adminHandler.WithReadinessChecks(readinessChecks(db, redisClient, kafkaProducer)...),
	).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		log.Warn("pipelines not fully drained", "error", err.Error())
	}
	if relay != nil {
		cancelRelay()
		if n, err := relay.Drain(shutdownCtx); err != nil {
			log.Warn("outbox drain incomplete", "published", n, "error", err.Error())
		}
	}

	log.Info("server stopped")
	return nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// readinessChecks assembles the dependency probes for /readyz from whatever
// backends this deployment actually runs on.
func readinessChecks(db *sql.DB, redisClient *platformRedis.Client, kafkaProducer *producer.Producer) []adminHandler.Check {
	checks := []adminHandler.Check{}
	if db != nil {
		checks = append(checks, adminHandler.Check{Name: "postgres", Pinger: adapters.NewDatabasePinger(db)})
	} else {
		checks = append(checks, adminHandler.Check{Name: "records", Pinger: adapters.AlwaysReady{}})
	}
	if redisClient != nil {
		checks = append(checks, adminHandler.Check{Name: "redis", Pinger: adapters.NewHealthPinger(redisClient)})
	}
	if kafkaProducer != nil {
		checks = append(checks, adminHandler.Check{Name: "kafka", Pinger: adapters.PingFunc(kafkaProducer.Ping)})
	}
	return checks
}
