package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress           string
	DatabaseURI          string
	LMSAddress           string
	StripeSecretKey      string
	StripeWebhookSecret  string
	StripeAPIURL         string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	OperatorTokenSecret  string
	OperatorLogin        string
	OperatorPasswordHash string
	ScheduleInterval     time.Duration
	WorkerPoolSize       int
	ScheduleBatchSize    int
	ChargeCooldown       time.Duration
	MaxChargeAttempts    int
	ChargeRate           float64
	ShutdownTimeout      time.Duration
	LogLevel             slog.Level
}

const (
	defaultRunAddress          = ":8080"
	defaultKafkaBrokers        = "localhost:9092"
	defaultKafkaTopicPrefix    = "coursemart"
	defaultOperatorTokenSecret = "change-me-in-production"
	defaultOperatorLogin       = "admin"
	defaultScheduleInterval    = 24 * time.Hour
	defaultWorkerPoolSize      = 4
	defaultScheduleBatchSize   = 500
	defaultChargeCooldown      = 20 * time.Hour
	defaultMaxChargeAttempts   = 3
	defaultChargeRate          = 10
	defaultShutdownTimeout     = 10 * time.Second
	defaultLogLevel            = "info"
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:           getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:          getString(lookup, "DATABASE_URI", ""),
		LMSAddress:           getString(lookup, "LMS_ADDRESS", ""),
		StripeSecretKey:      getString(lookup, "STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:  getString(lookup, "STRIPE_WEBHOOK_SECRET", ""),
		StripeAPIURL:         getString(lookup, "STRIPE_API_URL", ""),
		KafkaTopicPrefix:     getString(lookup, "KAFKA_TOPIC_PREFIX", defaultKafkaTopicPrefix),
		OperatorTokenSecret:  getString(lookup, "OPERATOR_TOKEN_SECRET", defaultOperatorTokenSecret),
		OperatorLogin:        getString(lookup, "OPERATOR_LOGIN", defaultOperatorLogin),
		OperatorPasswordHash: getString(lookup, "OPERATOR_PASSWORD_HASH", ""),
		ScheduleInterval:     getDuration(lookup, "SCHEDULE_INTERVAL", defaultScheduleInterval),
		WorkerPoolSize:       getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ScheduleBatchSize:    getInt(lookup, "SCHEDULE_BATCH_SIZE", defaultScheduleBatchSize),
		ChargeCooldown:       getDuration(lookup, "CHARGE_COOLDOWN", defaultChargeCooldown),
		MaxChargeAttempts:    getInt(lookup, "MAX_CHARGE_ATTEMPTS", defaultMaxChargeAttempts),
		ChargeRate:           getFloat(lookup, "CHARGE_RATE", defaultChargeRate),
		ShutdownTimeout:      getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("coursemart", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		brokers            = getString(lookup, "KAFKA_BROKERS", defaultKafkaBrokers)
		logLevel           = getString(lookup, "LOG_LEVEL", defaultLogLevel)
		scheduleStr        = cfg.ScheduleInterval.String()
		cooldownStr        = cfg.ChargeCooldown.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.LMSAddress, "l", cfg.LMSAddress, "LMS base URL")
	fs.StringVar(&cfg.StripeSecretKey, "stripe-key", cfg.StripeSecretKey, "Stripe secret API key")
	fs.StringVar(&cfg.StripeWebhookSecret, "stripe-webhook-secret", cfg.StripeWebhookSecret, "Stripe webhook signing secret")
	fs.StringVar(&cfg.StripeAPIURL, "stripe-url", cfg.StripeAPIURL, "Stripe API base URL override")
	fs.StringVar(&brokers, "kafka-brokers", brokers, "Comma separated Kafka brokers")
	fs.StringVar(&cfg.KafkaTopicPrefix, "kafka-topic-prefix", cfg.KafkaTopicPrefix, "Prefix for published Kafka topics")
	fs.StringVar(&cfg.OperatorTokenSecret, "token-secret", cfg.OperatorTokenSecret, "Secret for signing operator tokens")
	fs.StringVar(&cfg.OperatorLogin, "operator-login", cfg.OperatorLogin, "Operator login")
	fs.StringVar(&cfg.OperatorPasswordHash, "operator-password-hash", cfg.OperatorPasswordHash, "Bcrypt hash of the operator password")
	fs.StringVar(&scheduleStr, "schedule-interval", scheduleStr, "Interval between payment schedule passes")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of orders billed concurrently")
	fs.IntVar(&cfg.ScheduleBatchSize, "schedule-batch", cfg.ScheduleBatchSize, "Maximum orders per schedule pass")
	fs.StringVar(&cooldownStr, "charge-cooldown", cooldownStr, "Minimum delay between charges of one installment")
	fs.IntVar(&cfg.MaxChargeAttempts, "max-charge-attempts", cfg.MaxChargeAttempts, "Charge attempts per installment")
	fs.Float64Var(&cfg.ChargeRate, "charge-rate", cfg.ChargeRate, "Gateway charges per second")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ScheduleInterval, err = time.ParseDuration(scheduleStr); err != nil {
		return nil, fmt.Errorf("invalid schedule interval: %w", err)
	}

	if cfg.ChargeCooldown, err = time.ParseDuration(cooldownStr); err != nil {
		return nil, fmt.Errorf("invalid charge cooldown: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg.KafkaBrokers = splitList(brokers)

	if secretFile, ok := lookup("OPERATOR_TOKEN_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read token secret file: %w", err)
		}
		cfg.OperatorTokenSecret = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.ScheduleBatchSize <= 0 {
		cfg.ScheduleBatchSize = defaultScheduleBatchSize
	}

	if cfg.ScheduleInterval <= 0 {
		cfg.ScheduleInterval = defaultScheduleInterval
	}

	if cfg.ChargeCooldown < 0 {
		cfg.ChargeCooldown = defaultChargeCooldown
	}

	if cfg.MaxChargeAttempts <= 0 {
		cfg.MaxChargeAttempts = defaultMaxChargeAttempts
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.LMSAddress == "" {
		return nil, fmt.Errorf("LMS address must be provided")
	}

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("stripe secret key and webhook secret must be provided")
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
