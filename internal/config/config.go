package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Artifact sources
const (
	SourceFile = "file"
	SourceS3   = "s3"
)

// Apply backends
const (
	BackendDelay = "delay"
	BackendFile  = "file"
)

// Config holds all application configuration
type Config struct {
	// Artifact selection
	Artifact       string `mapstructure:"artifact"`
	ArtifactSource string `mapstructure:"artifact-source"`
	ArtifactDir    string `mapstructure:"artifact-dir"`

	// S3 configuration
	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`

	// Security limits
	MaxArtifactSize int64 `mapstructure:"max-artifact-size"`

	// State machine timing
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout"`
	Cadence        time.Duration `mapstructure:"cadence"`

	// Apply and reboot
	ApplyBackend  string        `mapstructure:"apply-backend"`
	ApplyDelay    time.Duration `mapstructure:"apply-delay"`
	ApplyTarget   string        `mapstructure:"apply-target"`
	RebootCommand string        `mapstructure:"reboot-command"`

	// Observability
	HistoryPath string `mapstructure:"history-path"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("artifact", "update_artifact_good.bin")
	viper.SetDefault("artifact-source", SourceFile)
	viper.SetDefault("artifact-dir", "")
	viper.SetDefault("s3-bucket", "")
	viper.SetDefault("s3-region", "us-east-1")
	viper.SetDefault("max-artifact-size", 256*1024*1024)
	viper.SetDefault("confirm-timeout", 60*time.Second)
	viper.SetDefault("cadence", 2*time.Second)
	viper.SetDefault("apply-backend", BackendDelay)
	viper.SetDefault("apply-delay", time.Second)
	viper.SetDefault("apply-target", ".artifacts/slot.bin")
	viper.SetDefault("reboot-command", "")
	viper.SetDefault("history-path", ".artifacts/history.db")
	viper.SetDefault("metrics-addr", "")

	// Environment variables (UPDATER_CONFIRM_TIMEOUT, etc.)
	viper.SetEnvPrefix("UPDATER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.update-agent")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Artifact == "" {
		return fmt.Errorf("artifact cannot be empty")
	}
	switch c.ArtifactSource {
	case SourceFile:
	case SourceS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket is required when artifact-source is s3")
		}
	default:
		return fmt.Errorf("unknown artifact-source %q", c.ArtifactSource)
	}
	if c.MaxArtifactSize <= 0 {
		return fmt.Errorf("max-artifact-size must be positive")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm-timeout must be positive")
	}
	if c.Cadence <= 0 {
		return fmt.Errorf("cadence must be positive")
	}
	switch c.ApplyBackend {
	case BackendDelay:
	case BackendFile:
		if c.ApplyTarget == "" {
			return fmt.Errorf("apply-target is required when apply-backend is file")
		}
	default:
		return fmt.Errorf("unknown apply-backend %q", c.ApplyBackend)
	}
	if c.ApplyDelay < 0 {
		return fmt.Errorf("apply-delay must be non-negative")
	}
	return nil
}

// RebootArgs splits the reboot command into a program and its arguments.
// It returns "" when no command is configured.
func (c *Config) RebootArgs() (string, []string) {
	fields := strings.Fields(c.RebootCommand)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
