package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backend selection for the ledger repository.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	StorageBackend string

	// Kafka event publishing; disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string

	// Requests per minute per client IP.
	RateLimitRPM int64

	// Bounded retry budget for withdrawals hitting transient conflicts.
	WithdrawMaxRetries int
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("STORAGE_BACKEND", StoragePostgres)
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "transaction_recorded")
	viper.SetDefault("RATE_LIMIT_RPM", 300)
	viper.SetDefault("WITHDRAW_MAX_RETRIES", 3)

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:        viper.GetString("PGSQL_URL"),
		Port:               viper.GetString("PORT"),
		IsProduction:       viper.GetBool("IS_PRODUCTION"),
		StorageBackend:     viper.GetString("STORAGE_BACKEND"),
		KafkaTopic:         viper.GetString("KAFKA_TOPIC"),
		RateLimitRPM:       viper.GetInt64("RATE_LIMIT_RPM"),
		WithdrawMaxRetries: viper.GetInt("WITHDRAW_MAX_RETRIES"),
	}

	if brokers := viper.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.StorageBackend != StoragePostgres && cfg.StorageBackend != StorageMemory {
		log.Printf("Warning: unknown STORAGE_BACKEND %q, falling back to %s\n", cfg.StorageBackend, StoragePostgres)
		cfg.StorageBackend = StoragePostgres
	}

	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	if cfg.WithdrawMaxRetries < 1 {
		cfg.WithdrawMaxRetries = 1
	}

	return cfg, nil
}
