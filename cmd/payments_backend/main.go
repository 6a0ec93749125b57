package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/altpay/payments-service/internal/core/services"
	"github.com/altpay/payments-service/internal/events"
	eventskafka "github.com/altpay/payments-service/internal/events/kafka"
	"github.com/altpay/payments-service/internal/handlers"
	"github.com/altpay/payments-service/internal/middleware"
	memoryrepo "github.com/altpay/payments-service/internal/repositories/database/memory"
	"github.com/altpay/payments-service/internal/repositories/database/pgsql"
	"github.com/altpay/payments-service/pkg/config"
	"github.com/altpay/payments-service/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	portsrepo "github.com/altpay/payments-service/internal/core/ports/repositories"
	portssvc "github.com/altpay/payments-service/internal/core/ports/services"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ulule/limiter/v3"
	limitermem "github.com/ulule/limiter/v3/drivers/store/memory"
)

// @title Payments Service API
// @version 1.0
// @description Ledger service managing per-user monetary accounts.

// @host localhost:8080
// @BasePath /
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ledgerRepo, cleanup, err := buildLedgerRepository(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	// Optional Kafka event publishing for committed transactions.
	serviceOptions := []services.ServiceOption{
		services.WithWithdrawMaxRetries(cfg.WithdrawMaxRetries),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := eventskafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Error("Error closing Kafka publisher", slog.String("error", cerr.Error()))
			}
		}()
		serviceOptions = append(serviceOptions, services.WithEventPublisher(events.Publisher(publisher)))
		logger.Info("Kafka event publishing enabled", slog.String("topic", cfg.KafkaTopic))
	}

	serviceContainer := &portssvc.ServiceContainer{
		Account: services.NewAccountService(ledgerRepo, serviceOptions...),
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS, rate limiting)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.RateLimit(limiter.New(limitermem.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  cfg.RateLimitRPM,
	})))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, serviceContainer)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildLedgerRepository constructs the configured storage backend. The
// returned cleanup closes pooled resources and is safe to call once.
func buildLedgerRepository(cfg *config.Config, logger *slog.Logger) (portsrepo.LedgerRepository, func(), error) {
	if cfg.StorageBackend == config.StorageMemory {
		logger.Warn("Using in-memory storage; ledger state will not survive a restart")
		return memoryrepo.NewLedgerRepository(), func() {}, nil
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg, logger); err != nil {
		dbPool.Close()
		return nil, nil, err
	}

	return pgsql.NewLedgerRepository(dbPool), dbPool.Close, nil
}

// runMigrations applies all pending "up" migrations using a temporary
// database/sql connection over the pgx stdlib driver.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()

	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
