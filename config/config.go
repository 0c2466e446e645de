/*
Package config loads the billing server configuration.

SOURCES (later wins):
  1. Built-in defaults (setDefaults), enough to run with no file at all
  2. .env file in the working directory, if present
  3. YAML config file, if a path is given
  4. Environment variables (BILLING_SERVER_PORT, SMTP_PASSWORD, ...)
  5. Command-line flags, applied by cmd/server after Load

EXAMPLE (config.yaml):
  server:
    port: 8080
  database:
    path: data/billing.db
  billing:
    default_surcharge_percent: 2
  scheduler:
    enabled: true
    spec: "0 9 * * *"
    lead_days: 3
  email:
    enabled: true
    smtp_host: smtp.example.com
    smtp_port: 587
    from: billing@example.com
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Email     EmailConfig     `mapstructure:"email"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	EnableDemo      bool          `mapstructure:"enable_demo"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// BillingConfig holds invoicing defaults
type BillingConfig struct {
	DefaultSurchargePercent float64 `mapstructure:"default_surcharge_percent"`
	MaxSurchargePercent     float64 `mapstructure:"max_surcharge_percent"`
	CompanyName             string  `mapstructure:"company_name"`
}

// SurchargePercent returns the default surcharge as a decimal.
func (b BillingConfig) SurchargePercent() decimal.Decimal {
	return decimal.NewFromFloat(b.DefaultSurchargePercent)
}

// SchedulerConfig holds the reminder sweep configuration
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Spec     string `mapstructure:"spec"` // standard 5-field cron expression
	LeadDays int    `mapstructure:"lead_days"`
}

// EmailConfig holds SMTP configuration for reminders
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// BCC receives a copy of every reminder, typically the accounts desk.
	BCC string `mapstructure:"bcc"`
}

// Load loads configuration from an optional file, .env and environment variables.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.enable_demo", true)

	// Database defaults
	v.SetDefault("database.path", "billing.db")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Billing defaults
	v.SetDefault("billing.default_surcharge_percent", 2.0)
	v.SetDefault("billing.max_surcharge_percent", 10.0)
	v.SetDefault("billing.company_name", "Billing")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "0 9 * * *")
	v.SetDefault("scheduler.lead_days", 3)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Credentials are conventionally unprefixed
	v.BindEnv("email.smtp_host", "SMTP_HOST")
	v.BindEnv("email.username", "SMTP_USERNAME")
	v.BindEnv("email.password", "SMTP_PASSWORD")
	v.BindEnv("email.from", "SMTP_FROM")
	v.BindEnv("database.path", "BILLING_DATABASE_PATH", "DATABASE_PATH")
	v.BindEnv("server.port", "BILLING_SERVER_PORT", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Billing.MaxSurchargePercent < 0 {
		return fmt.Errorf("billing.max_surcharge_percent must not be negative")
	}
	if c.Billing.DefaultSurchargePercent < 0 || c.Billing.DefaultSurchargePercent > c.Billing.MaxSurchargePercent {
		return fmt.Errorf("billing.default_surcharge_percent must be between 0 and %g", c.Billing.MaxSurchargePercent)
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return fmt.Errorf("scheduler.spec: %w", err)
		}
		if c.Scheduler.LeadDays < 0 {
			return fmt.Errorf("scheduler.lead_days must not be negative")
		}
	}

	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	}

	return nil
}
