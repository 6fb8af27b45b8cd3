package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	applog "expensetracker/internal/log"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// HTTP Server
	Port string

	// Store
	DBDriver           string
	SQLiteDBPath       string
	DBConnectionString string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/expenses.db"),
		DBConnectionString: getEnv("DB_CONNECTION_STRING", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_changes"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if port, err := strconv.Atoi(c.Port); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLiteDBPath == "" {
			result = multierror.Append(result, fmt.Errorf("SQLITE_DB_PATH cannot be empty when using the sqlite driver"))
		}
	case DriverPostgres:
		if c.DBConnectionString == "" {
			result = multierror.Append(result, fmt.Errorf("DB_CONNECTION_STRING is required when using the postgres driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("invalid DB_DRIVER '%s': must be one of [%s %s]", c.DBDriver, DriverSQLite, DriverPostgres))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid AMQP URL: %w", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			result = multierror.Append(result, fmt.Errorf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			result = multierror.Append(result, fmt.Errorf("AMQP exchange name cannot be empty when AMQP URL is provided"))
		}
		if c.AMQPQueue == "" {
			result = multierror.Append(result, fmt.Errorf("AMQP queue name cannot be empty when AMQP URL is provided"))
		}
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		result = multierror.Append(result, fmt.Errorf("invalid LOG_LEVEL '%s'", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		result = multierror.Append(result, fmt.Errorf("invalid LOG_FORMAT '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.ShutdownTimeout < time.Second {
		result = multierror.Append(result, fmt.Errorf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// LoggerConfig maps the logging keys onto a logger configuration.
func (c *Config) LoggerConfig() applog.Config {
	cfg := applog.DefaultConfig()
	cfg.Level, _ = applog.ParseLevel(c.LogLevel)
	cfg.Format = strings.ToLower(c.LogFormat)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
