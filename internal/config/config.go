// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all service configuration.
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	// MongoURI enables the durable audit sink when set.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// MQTTBroker enables audit publishing when set.
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
	MQTTTimeout  time.Duration

	// GenerateCron is the schedule of automatic order generation. Empty disables it.
	GenerateCron string
	SeedFile     string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads envFile when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:            envInt("PORT", 8080),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "text"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   envString("MONGO_DATABASE", "maintenance"),
		MongoCollection: envString("MONGO_AUDIT_COLLECTION", "audit_events"),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    envString("MQTT_CLIENT_ID", "maintenance-scheduler"),
		MQTTTopic:       envString("MQTT_TOPIC", "maintenance/audit"),
		MQTTTimeout:     envDuration("MQTT_TIMEOUT", 5*time.Second),
		GenerateCron:    envString("GENERATE_CRON", "@hourly"),
		SeedFile:        os.Getenv("SEED_FILE"),
		RateLimitRPS:    envFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 40),
	}
	if v, ok := os.LookupEnv("GENERATE_CRON"); ok {
		cfg.GenerateCron = strings.TrimSpace(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ConfigureLogger applies the configured level and format to log.
func (c *Config) ConfigureLogger(log *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q, expected text or json", c.LogFormat)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", c.RateLimitBurst)
	}
	if c.MQTTBroker != "" && c.MQTTTimeout <= 0 {
		return fmt.Errorf("mqtt timeout must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
