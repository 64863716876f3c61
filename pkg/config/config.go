// Package config loads the engine's configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/keyring"
)

// Config represents the complete engine configuration
type Config struct {
	Cipher    CipherConfig    `json:"cipher"`
	HTTP      HTTPConfig      `json:"http"`
	Messaging MessagingConfig `json:"messaging"`
	Logging   LoggingConfig   `json:"logging"`
}

// CipherConfig holds per-context cipher parameters
type CipherConfig struct {
	// Suite selects the AEAD construction for new contexts
	Suite string `json:"suite" env:"E2EE_CIPHER_SUITE" default:"AES-256-GCM"`

	// GenerationTolerance is the circular-distance cutoff separating raw
	// frames from stale ciphertext. Heuristic; see pkg/frame.
	GenerationTolerance int `json:"generation_tolerance" env:"E2EE_GENERATION_TOLERANCE" default:"5"`

	// QueueDepth sizes each context's request/reply channels
	QueueDepth int `json:"queue_depth" env:"E2EE_QUEUE_DEPTH" default:"64"`
}

// HTTPConfig holds the diagnostics/bridge server configuration
type HTTPConfig struct {
	Port          int           `json:"port" env:"HTTP_PORT" default:"8085"`
	EnableMetrics bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	ReadTimeout   time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"10s"`
}

// MessagingConfig holds the optional AMQP telemetry publisher configuration
type MessagingConfig struct {
	Enabled         bool          `json:"enabled" env:"AMQP_ENABLED" default:"false"`
	AMQPURL         string        `json:"amqp_url" env:"AMQP_URL"`
	QueueName       string        `json:"queue_name" env:"AMQP_QUEUE_NAME" default:"framecipher.stats"`
	PublishInterval time.Duration `json:"publish_interval" env:"AMQP_PUBLISH_INTERVAL" default:"30s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables only")
	}

	cfg := &Config{
		Cipher: CipherConfig{
			Suite:               getEnv("E2EE_CIPHER_SUITE", string(keyring.SuiteAESGCM)),
			GenerationTolerance: getEnvInt("E2EE_GENERATION_TOLERANCE", 5, logger),
			QueueDepth:          getEnvInt("E2EE_QUEUE_DEPTH", 64, logger),
		},
		HTTP: HTTPConfig{
			Port:          getEnvInt("HTTP_PORT", 8085, logger),
			EnableMetrics: getEnvBool("HTTP_ENABLE_METRICS", true, logger),
			ReadTimeout:   getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second, logger),
			WriteTimeout:  getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second, logger),
		},
		Messaging: MessagingConfig{
			Enabled:         getEnvBool("AMQP_ENABLED", false, logger),
			AMQPURL:         getEnv("AMQP_URL", ""),
			QueueName:       getEnv("AMQP_QUEUE_NAME", "framecipher.stats"),
			PublishInterval: getEnvDuration("AMQP_PUBLISH_INTERVAL", 30*time.Second, logger),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, err := keyring.ParseSuite(c.Cipher.Suite); err != nil {
		return fmt.Errorf("invalid cipher configuration: %w", err)
	}

	if c.Cipher.GenerationTolerance < 0 || c.Cipher.GenerationTolerance > 127 {
		return fmt.Errorf("generation tolerance must be between 0 and 127, got %d", c.Cipher.GenerationTolerance)
	}

	if c.Cipher.QueueDepth < 1 {
		return fmt.Errorf("queue depth must be at least 1, got %d", c.Cipher.QueueDepth)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}

	if c.Messaging.Enabled && c.Messaging.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required when AMQP_ENABLED is true")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, logger *logrus.Logger) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid integer in environment, using default")
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool, logger *logrus.Logger) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid boolean in environment, using default")
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration, logger *logrus.Logger) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid duration in environment, using default")
		return defaultValue
	}
	return parsed
}
