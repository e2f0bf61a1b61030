package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at startup
// and passed by value; nothing mutates it afterwards.
type Config struct {
	// Shared secret the health probe presents in the header or payload
	Secret string `mapstructure:"secret"`

	// Remediation target
	Project       string `mapstructure:"project"`
	TargetAddress string `mapstructure:"target-address"`

	// HTTP listener
	ListenAddr string  `mapstructure:"listen-addr"`
	RateLimit  float64 `mapstructure:"rate-limit"`
	RateBurst  int     `mapstructure:"rate-burst"`

	// Inventory access
	CredentialsFile string `mapstructure:"credentials-file"`
	InventoryFile   string `mapstructure:"inventory-file"`
	ZoneConcurrency int    `mapstructure:"zone-concurrency"`

	// Durable workflow and journal (both optional)
	FSMDBPath   string `mapstructure:"fsm-db-path"`
	JournalPath string `mapstructure:"journal-path"`

	// Observability
	LogLevel      string `mapstructure:"log-level"`
	LogFormat     string `mapstructure:"log-format"`
	TraceExporter string `mapstructure:"trace-exporter"`
	OTLPEndpoint  string `mapstructure:"otlp-endpoint"`

	// Journal archive
	ArchiveRegion string `mapstructure:"archive-region"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Keys without a meaningful default still need registering, otherwise
	// Unmarshal never consults the environment for them.
	viper.SetDefault("secret", "")
	viper.SetDefault("project", "")
	viper.SetDefault("target-address", "")
	viper.SetDefault("credentials-file", "")
	viper.SetDefault("inventory-file", "")

	viper.SetDefault("listen-addr", ":8080")
	viper.SetDefault("rate-limit", 0.0)
	viper.SetDefault("rate-burst", 5)
	viper.SetDefault("zone-concurrency", 1)
	viper.SetDefault("fsm-db-path", "")
	viper.SetDefault("journal-path", "")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "text")
	viper.SetDefault("trace-exporter", "none")
	viper.SetDefault("otlp-endpoint", "localhost:4317")
	viper.SetDefault("archive-region", "us-east-1")

	// Environment variables (REMEDIATOR_SECRET, REMEDIATOR_TARGET_ADDRESS, etc.)
	viper.SetEnvPrefix("REMEDIATOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.vm-remediator")
	viper.AddConfigPath("/etc/vm-remediator")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.TargetAddress = strings.TrimSpace(cfg.TargetAddress)
	return &cfg, nil
}

// Validate checks the settings every command needs to reach the inventory.
func (c *Config) Validate() error {
	if c.Project == "" && c.InventoryFile == "" {
		return fmt.Errorf("project cannot be empty")
	}
	if c.TargetAddress == "" {
		return fmt.Errorf("target-address cannot be empty")
	}
	if net.ParseIP(c.TargetAddress) == nil {
		return fmt.Errorf("target-address %q is not an IP address", c.TargetAddress)
	}
	if c.ZoneConcurrency < 1 {
		return fmt.Errorf("zone-concurrency must be at least 1")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json")
	}
	switch c.TraceExporter {
	case "none", "stdout":
	case "otlp":
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("otlp-endpoint cannot be empty when trace-exporter is otlp")
		}
	default:
		return fmt.Errorf("trace-exporter must be none, stdout or otlp")
	}
	return nil
}

// ValidateServer additionally checks what the webhook listener needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr cannot be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must be non-negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate-burst must be positive when rate-limit is set")
	}
	return nil
}
