// Package config loads and validates the cdapd configuration from file,
// environment and defaults.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the cdapd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CDAPD_*), for keys the configuration file sets
//  2. Configuration file (YAML)
//  3. Default values
//
// When no configuration file is found, Load returns the defaults and does
// not read the environment.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// CDAP configures the session layer
	CDAP CDAPConfig `mapstructure:"cdap" yaml:"cdap"`

	// Listener configures the TCP transport the daemon serves flows on
	Listener ListenerConfig `mapstructure:"listener" yaml:"listener"`

	// ControlPlane configures the management REST API
	ControlPlane ControlPlaneConfig `mapstructure:"controlplane" yaml:"controlplane"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects text or json output
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr" or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// CDAPConfig configures the session layer.
type CDAPConfig struct {
	// ConnectTimeout governs both the connect and the release timers.
	// Default: 10s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0" yaml:"connect_timeout"`

	// MaxMessageSize bounds a single encoded CDAP message.
	// Default: 1MB
	MaxMessageSize int `mapstructure:"max_message_size" validate:"gt=0" yaml:"max_message_size"`

	// SDUProtection selects the SDU protection policy: "none" (identity)
	// or "aead" (ChaCha20-Poly1305 with Key).
	SDUProtection SDUProtectionConfig `mapstructure:"sdu_protection" yaml:"sdu_protection"`
}

// SDUProtectionConfig configures the SDU protection policy.
type SDUProtectionConfig struct {
	// Mode is "none" or "aead"
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=none aead" yaml:"mode"`

	// Key is the hex-encoded 32-byte key, required in aead mode
	Key string `mapstructure:"key" yaml:"key,omitempty"`
}

// ListenerConfig configures the TCP flow listener.
type ListenerConfig struct {
	// Enabled starts the listener with the daemon
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the TCP listen address
	Address string `mapstructure:"address" yaml:"address"`

	// APName is the local application process name
	APName string `mapstructure:"ap_name" yaml:"ap_name"`

	// AEName is the local application entity the RIB is associated to
	AEName string `mapstructure:"ae_name" yaml:"ae_name"`

	// Version is the RIB version served
	Version int64 `mapstructure:"version" validate:"gt=0" yaml:"version"`
}

// ControlPlaneConfig configures the management REST API.
type ControlPlaneConfig struct {
	// Enabled starts the API server with the daemon
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP listen port
	Port int `mapstructure:"port" validate:"gt=0,lte=65535" yaml:"port"`

	// ReadTimeout bounds request reads. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds idle keep-alive connections. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled initializes the metrics registry and HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP listen port
	Port int `mapstructure:"port" validate:"gt=0,lte=65535" yaml:"port"`
}

// AEADKey decodes the configured SDU protection key.
func (c *SDUProtectionConfig) AEADKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("sdu_protection.key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("sdu_protection.key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.CDAP.ConnectTimeout == 0 {
		cfg.CDAP.ConnectTimeout = 10 * time.Second
	}
	if cfg.CDAP.MaxMessageSize == 0 {
		cfg.CDAP.MaxMessageSize = 1 << 20
	}
	if cfg.CDAP.SDUProtection.Mode == "" {
		cfg.CDAP.SDUProtection.Mode = "none"
	}
	if cfg.Listener.Address == "" {
		cfg.Listener.Address = ":4545"
	}
	if cfg.Listener.APName == "" {
		cfg.Listener.APName = "cdapd"
	}
	if cfg.Listener.AEName == "" {
		cfg.Listener.AEName = "management"
	}
	if cfg.Listener.Version == 0 {
		cfg.Listener.Version = 1
	}
	if cfg.ControlPlane.Port == 0 {
		cfg.ControlPlane.Port = 8680
	}
	if cfg.ControlPlane.ReadTimeout == 0 {
		cfg.ControlPlane.ReadTimeout = 10 * time.Second
	}
	if cfg.ControlPlane.WriteTimeout == 0 {
		cfg.ControlPlane.WriteTimeout = 10 * time.Second
	}
	if cfg.ControlPlane.IdleTimeout == 0 {
		cfg.ControlPlane.IdleTimeout = 60 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9465
	}
}

// Validate checks the configuration against the struct validation tags plus
// the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.CDAP.SDUProtection.Mode == "aead" {
		if _, err := cfg.CDAP.SDUProtection.AEADKey(); err != nil {
			return err
		}
	}
	return nil
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper points viper at the config file and wires CDAPD_* environment
// overrides.
func setupViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CDAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// readConfigFile reads the config file, reporting whether one was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// getConfigDir resolves the per-user config directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cdapd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cdapd")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
