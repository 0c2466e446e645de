package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "billing.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "2", cfg.Billing.SurchargePercent().String())
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.Spec)
	assert.False(t, cfg.Email.Enabled)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
database:
  path: data/test.db
billing:
  default_surcharge_percent: 1.5
scheduler:
  enabled: true
  spec: "*/5 * * * *"
  lead_days: 7
email:
  enabled: true
  smtp_host: smtp.example.com
  from: billing@example.com
`)
	t.Setenv("SMTP_PASSWORD", "s3cret")
	t.Setenv("BILLING_LOGGER_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "data/test.db", cfg.Database.Path)
	assert.Equal(t, "1.5", cfg.Billing.SurchargePercent().String())
	assert.Equal(t, 7, cfg.Scheduler.LeadDays)
	assert.Equal(t, "s3cret", cfg.Email.Password)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ":9090", cfg.Server.Addr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Path: "x.db"},
			Billing:   BillingConfig{DefaultSurchargePercent: 2, MaxSurchargePercent: 10},
			Scheduler: SchedulerConfig{Spec: "0 9 * * *"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"no database", func(c *Config) { c.Database.Path = "" }, true},
		{"surcharge above max", func(c *Config) { c.Billing.DefaultSurchargePercent = 12 }, true},
		{"bad cron when enabled", func(c *Config) { c.Scheduler.Enabled = true; c.Scheduler.Spec = "often" }, true},
		{"bad cron when disabled", func(c *Config) { c.Scheduler.Spec = "often" }, false},
		{"email without host", func(c *Config) { c.Email.Enabled = true; c.Email.From = "a@b.c" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
