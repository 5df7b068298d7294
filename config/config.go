package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	HTTP    ServerConfig
	GRPC    ServerConfig
	MySQL   MySQLConfig
	Redis   RedisConfig
	Log     LogConfig
	Auth    AuthConfig
	Stripe  StripeConfig
	Grading GradingConfig
	Jobs    JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	LockTTL   time.Duration
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type GradingConfig struct {
	PricingModel        string
	Currency            string
	AdminPageSize       int32
	AnalyticsCacheTTL   time.Duration
	WriteRetries        int
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET environment variable is required")
	}

	pricingModel := strings.ToLower(getEnv("GRADING_PRICING_MODEL", "tier"))
	if pricingModel != "tier" && pricingModel != "per_card" {
		return nil, fmt.Errorf("GRADING_PRICING_MODEL must be tier or per_card, got %q", pricingModel)
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "grading-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "grading"),
			LockTTL:   getSecondsEnv("REDIS_LOCK_TTL_SECONDS", 30*time.Second),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getIntEnv("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getIntEnv("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 14),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
			Issuer:    getEnv("AUTH_JWT_ISSUER", "grading-service"),
			TokenTTL:  getMinutesEnv("AUTH_TOKEN_TTL_MINUTES", 60*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIBaseURL:                getEnv("STRIPE_API_BASE_URL", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Grading: GradingConfig{
			PricingModel:        pricingModel,
			Currency:            strings.ToUpper(getEnv("GRADING_CURRENCY", "USD")),
			AdminPageSize:       int32(getIntEnv("GRADING_ADMIN_PAGE_SIZE", 50)),
			AnalyticsCacheTTL:   getSecondsEnv("GRADING_ANALYTICS_CACHE_TTL_SECONDS", 30*time.Second),
			WriteRetries:        getIntEnv("GRADING_WRITE_RETRIES", 3),
			ReconcileStaleAfter: getMinutesEnv("GRADING_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("GRADING_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("GRADING_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
