/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
	BrokerNone     = "none"

	ConceptPolicyAdvisory = "advisory"
	ConceptPolicyRequired = "required"
)

// Config holds all the configuration variables for the core service.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	StoreDriver             string `mapstructure:"STORE_DRIVER"`
	MigrationsEnabled       bool   `mapstructure:"MIGRATIONS_ENABLED"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	LoginRateLimitPerMinute int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	LoginMaxAttempts        int    `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	AccountNumberPrefix     string `mapstructure:"ACCOUNT_NUMBER_PREFIX"`
	TransferConceptPolicy   string `mapstructure:"TRANSFER_CONCEPT_POLICY"`
	EventBroker             string `mapstructure:"EVENT_BROKER"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	EventExchange           string `mapstructure:"EVENT_EXCHANGE"`
	KafkaBrokers            string `mapstructure:"KAFKA_BROKERS"`
	OutboxPollIntervalMs    int    `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	OutboxBatchSize         int    `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxRetentionDays     int    `mapstructure:"OUTBOX_RETENTION_DAYS"`
	OutboxPurgeSchedule     string `mapstructure:"OUTBOX_PURGE_SCHEDULE"`
	MetricsRefreshSchedule  string `mapstructure:"METRICS_REFRESH_SCHEDULE"`
	AdminAPIKey             string `mapstructure:"ADMIN_API_KEY"`
	CORSAllowedOrigins      string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel                string `mapstructure:"LOG_LEVEL"`

	// Warnings collects values that were coerced during loading. They are logged once the
	// logger exists.
	Warnings []string `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("MIGRATIONS_ENABLED", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "upbank:rate_limit")
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("LOGIN_MAX_ATTEMPTS", 3)
	viper.SetDefault("ACCOUNT_NUMBER_PREFIX", "ACC")
	viper.SetDefault("TRANSFER_CONCEPT_POLICY", ConceptPolicyAdvisory)
	viper.SetDefault("EVENT_EXCHANGE", "upbank.events")
	viper.SetDefault("OUTBOX_POLL_INTERVAL_MS", 1200)
	viper.SetDefault("OUTBOX_BATCH_SIZE", 50)
	viper.SetDefault("OUTBOX_RETENTION_DAYS", 7)
	viper.SetDefault("OUTBOX_PURGE_SCHEDULE", "0 3 * * *")
	viper.SetDefault("METRICS_REFRESH_SCHEDULE", "@every 1m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind environment variables explicitly so they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL", "DATABASE_URL", "POSTGRES_URL")
	_ = viper.BindEnv("STORE_DRIVER")
	_ = viper.BindEnv("MIGRATIONS_ENABLED")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "UPBANK_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("LOGIN_MAX_ATTEMPTS")
	_ = viper.BindEnv("ACCOUNT_NUMBER_PREFIX")
	_ = viper.BindEnv("TRANSFER_CONCEPT_POLICY")
	_ = viper.BindEnv("EVENT_BROKER")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("KAFKA_BROKERS")
	_ = viper.BindEnv("OUTBOX_POLL_INTERVAL_MS")
	_ = viper.BindEnv("OUTBOX_BATCH_SIZE")
	_ = viper.BindEnv("OUTBOX_RETENTION_DAYS")
	_ = viper.BindEnv("OUTBOX_PURGE_SCHEDULE")
	_ = viper.BindEnv("METRICS_REFRESH_SCHEDULE")
	_ = viper.BindEnv("ADMIN_API_KEY", "ADMIN_API_KEY", "UPBANK_ADMIN_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			config.Warnings = append(config.Warnings, fmt.Sprintf("failed to read config file; using environment values: %v", err))
		}
		err = nil
	}

	warnings := config.Warnings
	if err = viper.Unmarshal(&config); err != nil {
		return
	}
	config.Warnings = warnings

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.ServerPort) == "" {
		config.ServerPort = "5000"
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.KafkaBrokers = strings.TrimSpace(config.KafkaBrokers)
	config.AdminAPIKey = strings.TrimSpace(config.AdminAPIKey)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "upbank:rate_limit"
	}

	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))
	if config.StoreDriver != StoreDriverPostgres && config.StoreDriver != StoreDriverMemory {
		config.warnf("unknown STORE_DRIVER %q; using %s", config.StoreDriver, StoreDriverPostgres)
		config.StoreDriver = StoreDriverPostgres
	}

	config.TransferConceptPolicy = strings.ToLower(strings.TrimSpace(config.TransferConceptPolicy))
	if config.TransferConceptPolicy != ConceptPolicyAdvisory && config.TransferConceptPolicy != ConceptPolicyRequired {
		config.warnf("unknown TRANSFER_CONCEPT_POLICY %q; using %s", config.TransferConceptPolicy, ConceptPolicyAdvisory)
		config.TransferConceptPolicy = ConceptPolicyAdvisory
	}

	config.AccountNumberPrefix = strings.ToUpper(strings.TrimSpace(config.AccountNumberPrefix))
	if config.AccountNumberPrefix == "" {
		config.AccountNumberPrefix = "ACC"
	}

	// Without an explicit broker, pick whichever one has connection settings.
	config.EventBroker = strings.ToLower(strings.TrimSpace(config.EventBroker))
	switch config.EventBroker {
	case BrokerRabbitMQ, BrokerKafka, BrokerNone:
	case "":
		switch {
		case config.RabbitMQURL != "":
			config.EventBroker = BrokerRabbitMQ
		case config.KafkaBrokers != "":
			config.EventBroker = BrokerKafka
		default:
			config.EventBroker = BrokerNone
		}
	default:
		config.warnf("unknown EVENT_BROKER %q; events will not be published", config.EventBroker)
		config.EventBroker = BrokerNone
	}
	config.EventExchange = strings.TrimSpace(config.EventExchange)
	if config.EventExchange == "" {
		config.EventExchange = "upbank.events"
	}

	if config.LoginMaxAttempts <= 0 {
		config.warnf("LOGIN_MAX_ATTEMPTS must be positive; using 3")
		config.LoginMaxAttempts = 3
	}
	if config.LoginRateLimitPerMinute < 0 {
		config.LoginRateLimitPerMinute = 0
	}
	if config.OutboxPollIntervalMs <= 0 {
		config.OutboxPollIntervalMs = 1200
	}
	if config.OutboxBatchSize <= 0 {
		config.OutboxBatchSize = 50
	}
	if config.OutboxRetentionDays <= 0 {
		config.OutboxRetentionDays = 7
	}
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	return
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY is required")
	}
	if c.StoreDriver == StoreDriverPostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
	}
	if c.EventBroker == BrokerRabbitMQ && c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required when EVENT_BROKER is rabbitmq")
	}
	if c.EventBroker == BrokerKafka && c.KafkaBrokers == "" {
		return errors.New("KAFKA_BROKERS is required when EVENT_BROKER is kafka")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (c *Config) warnf(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
