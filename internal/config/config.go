// Package config provides run configuration for optimize-table.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Leonid-98/optimize-table/internal/inventory"
	"github.com/Leonid-98/optimize-table/internal/ssh"
	"github.com/Leonid-98/optimize-table/internal/target"
	"github.com/Leonid-98/optimize-table/internal/template"
)

// EnvPrefix prefixes every environment override, e.g. OPTIMIZE_TABLE_PASSWORD
const EnvPrefix = "OPTIMIZE_TABLE"

// Config represents the application configuration structure
type Config struct {
	Servers        string        `mapstructure:"servers"`         // Path to the YAML inventory
	Port           int           `mapstructure:"port"`            // SSH port used for every server
	Password       string        `mapstructure:"password"`        // SSH password used for every server
	Command        string        `mapstructure:"command"`         // Remote command template
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"` // Dial and handshake timeout
	Output         string        `mapstructure:"output"`          // Report format (text, json, yaml)
	Quiet          bool          `mapstructure:"quiet"`           // Suppress non-error logs
	DryRun         bool          `mapstructure:"dry-run"`         // Pass the dry-run flag to the remote script
	LogLevel       string        `mapstructure:"log-level"`       // Log level (info, error)
	LogFormat      string        `mapstructure:"log-format"`      // Log format (json, text)
	ShowProgress   bool          `mapstructure:"progress"`        // Print per-server progress on stderr
	ShowStats      bool          `mapstructure:"stats"`           // Print fleet statistics on stderr
}

// Manager defines the interface for configuration management
type Manager interface {
	// Load reads configuration from all sources (files, env vars)
	Load() (*Config, error)

	// SetDefaults establishes default configuration values
	SetDefaults()

	// Validate ensures configuration values are valid and consistent
	Validate(config *Config) error
}

// ViperManager implements the Manager interface using Viper
type ViperManager struct {
	v          *viper.Viper
	configFile string
}

var _ Manager = (*ViperManager)(nil)

// NewManager creates a configuration manager that searches the default
// config locations
func NewManager() *ViperManager {
	return &ViperManager{v: viper.New()}
}

// NewManagerWithFile creates a configuration manager that reads exactly path
func NewManagerWithFile(path string) *ViperManager {
	return &ViperManager{v: viper.New(), configFile: path}
}

// SetDefaults establishes default configuration values
func (m *ViperManager) SetDefaults() {
	m.v.SetDefault("servers", inventory.DefaultPath)
	m.v.SetDefault("port", target.DefaultPort)
	m.v.SetDefault("password", "")
	m.v.SetDefault("command", template.DefaultCommand)
	m.v.SetDefault("connect-timeout", ssh.DefaultConnectTimeout)
	m.v.SetDefault("output", "text")
	m.v.SetDefault("quiet", false)
	m.v.SetDefault("dry-run", false)
	m.v.SetDefault("log-level", "info")
	m.v.SetDefault("log-format", "text")
	m.v.SetDefault("progress", false)
	m.v.SetDefault("stats", false)
}

// Load reads defaults, then the config file, then OPTIMIZE_TABLE_* variables
func (m *ViperManager) Load() (*Config, error) {
	m.SetDefaults()

	if m.configFile != "" {
		m.v.SetConfigFile(m.configFile)
	} else {
		m.v.SetConfigName("config")
		m.v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			m.v.AddConfigPath(filepath.Join(homeDir, ".config", "optimize-table"))
		}
		m.v.AddConfigPath("/etc/optimize-table/")
	}

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := m.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// ConfigFileUsed returns the path of the file that was read, if any
func (m *ViperManager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Validate ensures configuration values are valid and consistent
func (m *ViperManager) Validate(config *Config) error {
	if config.Servers == "" {
		return fmt.Errorf("servers inventory path must not be empty")
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", config.Port)
	}

	if config.Password == "" {
		return fmt.Errorf("password is required: set 'password' in the config file or %s_PASSWORD", EnvPrefix)
	}

	if strings.TrimSpace(config.Command) == "" {
		return fmt.Errorf("command must not be empty")
	}
	if err := template.ValidateTemplate(config.Command); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive, got %v", config.ConnectTimeout)
	}

	validOutputs := map[string]bool{
		"text": true,
		"json": true,
		"yaml": true,
	}
	if !validOutputs[config.Output] {
		return fmt.Errorf("invalid output format '%s': must be one of 'text', 'json', or 'yaml'", config.Output)
	}

	validLogLevels := map[string]bool{
		"info":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level '%s': must be one of 'info' or 'error'", config.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format '%s': must be one of 'json' or 'text'", config.LogFormat)
	}

	return nil
}

// GetEnvVarNames returns every supported environment variable name
func GetEnvVarNames() []string {
	keys := []string{
		"servers", "port", "password", "command", "connect-timeout", "output",
		"quiet", "dry-run", "log-level", "log-format", "progress", "stats",
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	}
	return names
}
