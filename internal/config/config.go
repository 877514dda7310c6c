package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. RESTAURANT_DATABASE_HOST
const EnvPrefix = "RESTAURANT_"

// Config holds all configuration for the restaurant system
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Server     ServerConfig     `yaml:"server"`
	Restaurant RestaurantConfig `yaml:"restaurant"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	User      string        `yaml:"user"`
	Password  string        `yaml:"password"`
	Database  string        `yaml:"database"`
	MaxConns  int           `yaml:"max_conns"`
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RestaurantConfig holds business settings
type RestaurantConfig struct {
	Timezone string          `yaml:"timezone"`
	TaxRate  decimal.Decimal `yaml:"tax_rate"`
	Currency string          `yaml:"currency"`
}

// TracingConfig selects where spans go. Exporter is "none" or "stdout".
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      5432,
			User:      "restaurant_user",
			Database:  "restaurant_db",
			MaxConns:  25,
			TxTimeout: 10 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Exchange: "notifications_fanout",
			Queue:    "notifications_queue",
		},
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Restaurant: RestaurantConfig{
			Timezone: "UTC",
			TaxRate:  decimal.Zero,
			Currency: "USD",
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{Exporter: "none", SampleRatio: 1},
	}
}

// Load reads configuration from a YAML file and applies environment overrides.
// Keys missing from the file keep their Default values; unknown keys are an error.
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := Default()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(os.Environ()); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides values from RESTAURANT_<SECTION>_<KEY> variables
func (c *Config) applyEnv(environ []string) error {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || !knownSection(section) {
			continue
		}
		if err := c.setValue(section, key, value); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks values that would make the service misbehave at runtime
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Restaurant.Timezone); err != nil {
		return fmt.Errorf("invalid restaurant timezone %q: %w", c.Restaurant.Timezone, err)
	}
	if c.Restaurant.TaxRate.IsNegative() {
		return fmt.Errorf("tax_rate must not be negative")
	}
	if c.Database.TxTimeout <= 0 {
		return fmt.Errorf("database tx_timeout must be positive")
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be within [0, 1]")
	}
	return nil
}

func knownSection(section string) bool {
	switch section {
	case "database", "rabbitmq", "server", "restaurant", "logging", "tracing":
		return true
	}
	return false
}

// setValue sets a configuration value based on section and key
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "database":
		return c.setDatabaseValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	case "server":
		return c.setServerValue(key, value)
	case "restaurant":
		return c.setRestaurantValue(key, value)
	case "tracing":
		return c.setTracingValue(key, value)
	case "logging":
		if key != "level" {
			return fmt.Errorf("unknown logging key: %s", key)
		}
		c.Logging.Level = value
		return nil
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setDatabaseValue(key, value string) error {
	var err error
	switch key {
	case "host":
		c.Database.Host = value
	case "port":
		c.Database.Port, err = parseInt(value)
	case "user":
		c.Database.User = value
	case "password":
		c.Database.Password = value
	case "database":
		c.Database.Database = value
	case "max_conns":
		c.Database.MaxConns, err = parseInt(value)
	case "tx_timeout":
		c.Database.TxTimeout, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown database key: %s", key)
	}
	return err
}

func (c *Config) setRabbitMQValue(key, value string) error {
	var err error
	switch key {
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		c.RabbitMQ.Port, err = parseInt(value)
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	case "vhost":
		c.RabbitMQ.VHost = value
	case "exchange":
		c.RabbitMQ.Exchange = value
	case "queue":
		c.RabbitMQ.Queue = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return err
}

func (c *Config) setServerValue(key, value string) error {
	var err error
	switch key {
	case "port":
		c.Server.Port, err = parseInt(value)
	case "read_timeout":
		c.Server.ReadTimeout, err = time.ParseDuration(value)
	case "write_timeout":
		c.Server.WriteTimeout, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown server key: %s", key)
	}
	return err
}

func (c *Config) setRestaurantValue(key, value string) error {
	switch key {
	case "timezone":
		c.Restaurant.Timezone = value
	case "tax_rate":
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid tax_rate value: %w", err)
		}
		c.Restaurant.TaxRate = rate
	case "currency":
		c.Restaurant.Currency = value
	default:
		return fmt.Errorf("unknown restaurant key: %s", key)
	}
	return nil
}

func (c *Config) setTracingValue(key, value string) error {
	switch key {
	case "exporter":
		c.Tracing.Exporter = value
	case "sample_ratio":
		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid sample_ratio value: %w", err)
		}
		c.Tracing.SampleRatio = ratio
	default:
		return fmt.Errorf("unknown tracing key: %s", key)
	}
	return nil
}

// Location returns the restaurant time zone used for business days
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Restaurant.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	vhost := strings.TrimPrefix(c.RabbitMQ.VHost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port, vhost)
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value: %w", err)
	}
	return n, nil
}
