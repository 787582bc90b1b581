package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Admin     AdminConfig
	Checkout  CheckoutConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	S3        S3Config
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	LogLevel    string
	LogFormat   string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// AdminConfig names the admin account created on first start.
type AdminConfig struct {
	Username string
	Password string
}

type CheckoutConfig struct {
	TxTimeout    time.Duration
	LockTTL      time.Duration
	StrictTotals bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers     string
	TopicPrefix string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
	PresignExpiry   time.Duration
}

// Enabled reports whether exports can be archived to S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SchedulerConfig struct {
	OutboxRelaySpec  string
	StatsRefreshSpec string
	OutboxBatchSize  int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "bookstore"),
			Password:        getEnv("DB_PASSWORD", "bookstore"),
			DBName:          getEnv("DB_NAME", "bookstore"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Checkout: CheckoutConfig{
			TxTimeout:    parseDuration(getEnv("CHECKOUT_TX_TIMEOUT", "5s"), 5*time.Second),
			LockTTL:      parseDuration(getEnv("CHECKOUT_LOCK_TTL", "15s"), 15*time.Second),
			StrictTotals: getEnvBool("CHECKOUT_STRICT_TOTALS", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnv("KAFKA_BROKERS", ""),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "bookstore."),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
			PresignExpiry:   parseDuration(getEnv("AWS_S3_PRESIGN_EXPIRY", "15m"), 15*time.Minute),
		},
		Scheduler: SchedulerConfig{
			OutboxRelaySpec:  getEnv("OUTBOX_RELAY_SPEC", "@every 5s"),
			StatsRefreshSpec: getEnv("STATS_REFRESH_SPEC", "@every 1m"),
			OutboxBatchSize:  getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Environment == "production" && (c.JWT.Secret == "" || c.JWT.Secret == "your-secret-key") {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Checkout.TxTimeout <= 0 {
		return fmt.Errorf("CHECKOUT_TX_TIMEOUT must be positive, got %s", c.Checkout.TxTimeout)
	}
	// The checkout lock must outlive the transaction it guards.
	if c.Checkout.LockTTL <= c.Checkout.TxTimeout {
		return fmt.Errorf("CHECKOUT_LOCK_TTL (%s) must exceed CHECKOUT_TX_TIMEOUT (%s)", c.Checkout.LockTTL, c.Checkout.TxTimeout)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer %s=%s, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean %s=%s, using default %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
