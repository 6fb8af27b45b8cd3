package backend

import (
	"fmt"

	"expensetracker/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DBDriver)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DBDriver)
	}

	return Config{
		Type:             backendType,
		SQLiteDBPath:     appConfig.SQLiteDBPath,
		ConnectionString: appConfig.DBConnectionString,
		AMQPURL:          appConfig.AMQPURL,
		AMQPExchange:     appConfig.AMQPExchange,
		AMQPQueue:        appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.ConnectionString == "" {
			return fmt.Errorf("connection string is required for postgres backend")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend}
}
