package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"leasemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("LEASE_DB_PATH", "lease.db")
	yamlContent := `
database:
  path: "${LEASE_DB_PATH}"
lease:
  lock_ttl: "5s"
catalog:
  requesters:
    - id: 1
      name: "Mister Bob"
    - id: 2
      name: "Sir Stinky"
      is_vip: true
  resources:
    - id: 1
      name: "Ugly Fred"
      hourly_rate: 20
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "lease.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, models.MaxDailyHours, cfg.Lease.MaxDailyHours)
	assert.Equal(t, 5*time.Second, cfg.Lease.LockTimeout())
	require.Len(t, cfg.Catalog.Requesters, 2)
	assert.True(t, cfg.Catalog.Requesters[1].IsVIP)
	require.Len(t, cfg.Catalog.Resources, 1)
	assert.InDelta(t, 20.0, cfg.Catalog.Resources[0].HourlyRate, 1e-9)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid sqlite",
			cfg:  Config{Database: DatabaseConfig{Driver: "sqlite", Path: "path"}},
		},
		{
			name: "memory needs no path",
			cfg:  Config{Database: DatabaseConfig{Driver: "memory"}},
		},
		{
			name:    "missing path",
			cfg:     Config{Database: DatabaseConfig{Driver: "sqlite"}},
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			cfg:  Config{Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/leases"}},
		},
		{
			name:    "postgres without dsn",
			cfg:     Config{Database: DatabaseConfig{Driver: "postgres", Path: "ignored"}},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     Config{Database: DatabaseConfig{Driver: "oracle"}},
			wantErr: true,
		},
		{
			name: "cap above a day",
			cfg: Config{
				Database: DatabaseConfig{Driver: "memory"},
				Lease:    LeaseConfig{MaxDailyHours: 25},
			},
			wantErr: true,
		},
		{
			name: "kafka without topic",
			cfg: Config{
				Database: DatabaseConfig{Driver: "memory"},
				Kafka:    KafkaConfig{Brokers: []string{"localhost:9092"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}}}
	cfg.applyDefaults()

	assert.Equal(t, "leasemarket", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, models.MaxDailyHours, cfg.Lease.MaxDailyHours)
	assert.Equal(t, "lease_lock", cfg.Lease.LockPrefix)
	assert.Equal(t, "lease-events", cfg.Kafka.Topic)
	assert.Equal(t, models.DefaultLockTTL*time.Second, cfg.Lease.LockTimeout())
}

func TestValidateCatalog(t *testing.T) {
	tests := []struct {
		name    string
		catalog CatalogConfig
		wantErr bool
	}{
		{
			name: "valid",
			catalog: CatalogConfig{
				Requesters: []models.Requester{{ID: 1, Name: "Bob"}, {ID: 2, Name: "Stinky", IsVIP: true}},
				Resources:  []models.Resource{{ID: 1, Name: "Fred", HourlyRate: 20}},
			},
		},
		{
			name:    "duplicate requester",
			catalog: CatalogConfig{Requesters: []models.Requester{{ID: 1}, {ID: 1}}},
			wantErr: true,
		},
		{
			name:    "zero resource id",
			catalog: CatalogConfig{Resources: []models.Resource{{ID: 0, Name: "Fred"}}},
			wantErr: true,
		},
		{
			name:    "negative rate",
			catalog: CatalogConfig{Resources: []models.Resource{{ID: 1, Name: "Fred", HourlyRate: -1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.catalog)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCatalog() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
