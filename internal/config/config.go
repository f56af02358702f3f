package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration. Every field is read from the
// environment variable named in its koanf tag.
type Config struct {
	// Server
	Env      string `koanf:"ENV"`
	LogLevel string `koanf:"LOG_LEVEL"`
	Port     string `koanf:"PORT"`

	// Database
	DBDriver   string `koanf:"DB_DRIVER"` // postgres or sqlite
	DBHost     string `koanf:"DB_HOST"`
	DBPort     string `koanf:"DB_PORT"`
	DBUser     string `koanf:"DB_USER"`
	DBPassword string `koanf:"DB_PASSWORD"`
	DBName     string `koanf:"DB_NAME"`
	DBSSLMode  string `koanf:"DB_SSLMODE"`
	SQLitePath string `koanf:"SQLITE_PATH"`

	// Auth
	JWTSecret        string        `koanf:"JWT_SECRET"`
	JWTExpirationDur time.Duration `koanf:"JWT_EXPIRES_IN"`
	AccessKeyHash    string        `koanf:"ACCESS_KEY_HASH"`

	// Preferences (current ledger pointer)
	RedisAddr     string `koanf:"REDIS_ADDR"`
	RedisPassword string `koanf:"REDIS_PASSWORD"`
	RedisDB       int    `koanf:"REDIS_DB"`

	// Domain events
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE"`

	// Budget rollover scheduler; zero disables it
	RolloverInterval    time.Duration `koanf:"ROLLOVER_INTERVAL"`
	RolloverConcurrency int           `koanf:"ROLLOVER_CONCURRENCY"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var appConfig *Config

// Defaults returns the configuration used when no environment is set.
func Defaults() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Port:     "8080",

		DBDriver:   DriverPostgres,
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "pocketbook",
		DBPassword: "pocketbook",
		DBName:     "pocketbook",
		DBSSLMode:  "disable",
		SQLitePath: "pocketbook.db",

		JWTSecret:        "fallback-secret-key-for-dev-only",
		JWTExpirationDur: 24 * time.Hour,

		AMQPExchange: "pocketbook.events",

		RolloverInterval:    time.Hour,
		RolloverConcurrency: 4,
	}
}

// Load loads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	k := koanf.New(".")
	// Empty variables are skipped so they fall back to defaults.
	provider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(c.DBDriver)
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", c.DBDriver)
	}
	if c.JWTExpirationDur <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.JWTExpirationDur)
	}
	if c.RolloverInterval < 0 {
		return fmt.Errorf("ROLLOVER_INTERVAL must not be negative, got %s", c.RolloverInterval)
	}
	if c.RolloverConcurrency < 1 {
		c.RolloverConcurrency = 1
	}
	return nil
}

// PostgresDSN returns the gorm/pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// PostgresURL returns the URL form of the connection string used by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}
