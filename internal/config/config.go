package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"leasemarket/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Lease      LeaseConfig      `yaml:"lease"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type LeaseConfig struct {
	MaxDailyHours int    `yaml:"max_daily_hours"`
	LockTTL       string `yaml:"lock_ttl"`
	LockPrefix    string `yaml:"lock_prefix"`
}

// LockTimeout parses LockTTL, falling back to models.DefaultLockTTL seconds.
func (c LeaseConfig) LockTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LockTTL); err == nil && d > 0 {
		return d
	}
	return models.DefaultLockTTL * time.Second
}

// CatalogConfig seeds requesters and resources on startup.
type CatalogConfig struct {
	Requesters []models.Requester `yaml:"requesters"`
	Resources  []models.Resource  `yaml:"resources"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres, memory
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Lease.MaxDailyHours > 24 {
		return fmt.Errorf("lease.max_daily_hours must not exceed 24, got %d", c.Lease.MaxDailyHours)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}

	return ValidateCatalog(c.Catalog)
}

func ValidateCatalog(catalog CatalogConfig) error {
	requesterIDs := make(map[int64]bool)
	for _, r := range catalog.Requesters {
		if r.ID <= 0 {
			return fmt.Errorf("requester '%s' has invalid ID %d", r.Name, r.ID)
		}
		if requesterIDs[r.ID] {
			return fmt.Errorf("duplicate requester ID found: %d", r.ID)
		}
		requesterIDs[r.ID] = true
	}

	resourceIDs := make(map[int64]bool)
	for _, r := range catalog.Resources {
		if r.ID <= 0 {
			return fmt.Errorf("resource '%s' has invalid ID %d", r.Name, r.ID)
		}
		if r.HourlyRate < 0 {
			return fmt.Errorf("resource '%s' has negative hourly rate", r.Name)
		}
		if resourceIDs[r.ID] {
			return fmt.Errorf("duplicate resource ID found: %d", r.ID)
		}
		resourceIDs[r.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "leasemarket"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Lease defaults
	if c.Lease.MaxDailyHours <= 0 {
		c.Lease.MaxDailyHours = models.MaxDailyHours
	}
	if c.Lease.LockPrefix == "" {
		c.Lease.LockPrefix = "lease_lock"
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		c.Kafka.Topic = "lease-events"
	}
}
