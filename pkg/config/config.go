/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/freyjawire/pkg/compress"
	"github.com/ssargent/freyjawire/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Config represents the FreyjaWire configuration
type Config struct {
	DataDir          string        `yaml:"data_dir"`
	UnsafeBufferSize int           `yaml:"unsafe_buffer_size"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	Server           Server        `yaml:"server"`
	Security         Security      `yaml:"security"`
	Logging          Logging       `yaml:"logging"`
	Containers       []Container   `yaml:"containers"`
}

// Server contains the inspection API listener settings
type Server struct {
	Port int    `yaml:"port"`
	Bind string `yaml:"bind"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Container declares a named container and how its values are framed
type Container struct {
	Name        string       `yaml:"name"`
	Versions    bool         `yaml:"versions"`
	Compression *Compression `yaml:"compression,omitempty"`
}

// Compression enables the compression envelope for a container
type Compression struct {
	Codec      string `yaml:"codec"`
	Threshold  int    `yaml:"threshold"`
	TargetSize int    `yaml:"target_size"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "./data",
		UnsafeBufferSize: 64 * 1024,
		LockTimeout:      5 * time.Second,
		Server: Server{
			Port: 8080,
			Bind: "127.0.0.1",
		},
		Security: Security{
			APIKey: "",
		},
		Logging: Logging{
			Level:  "info",
			Format: string(logging.FormatJSON),
		},
		Containers: []Container{
			{Name: "records", Versions: true},
			{
				Name:     "blobs",
				Versions: true,
				Compression: &Compression{
					Codec:      "zstd",
					Threshold:  compress.DefaultThreshold,
					TargetSize: 256 * 1024,
				},
			},
		},
	}
}

// Validate rejects configurations the store cannot honour.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must be set")
	}
	if c.UnsafeBufferSize <= 0 {
		return errors.Newf("unsafe_buffer_size must be positive, got %d", c.UnsafeBufferSize)
	}
	if c.LockTimeout < 0 {
		return errors.Newf("lock_timeout must not be negative, got %s", c.LockTimeout)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch logging.Format(c.Logging.Format) {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		return errors.Newf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Containers))
	for i, ct := range c.Containers {
		if ct.Name == "" || strings.ContainsRune(ct.Name, 0) {
			return errors.Newf("containers[%d]: invalid name %q", i, ct.Name)
		}
		if seen[ct.Name] {
			return errors.Newf("containers[%d]: duplicate name %q", i, ct.Name)
		}
		seen[ct.Name] = true

		if cmp := ct.Compression; cmp != nil {
			if _, err := compress.Lookup(cmp.Codec); err != nil {
				return errors.Wrapf(err, "container %q", ct.Name)
			}
			if cmp.Threshold < 0 {
				return errors.Newf("container %q: compression threshold must not be negative", ct.Name)
			}
			if cmp.TargetSize <= 0 {
				return errors.Newf("container %q: compression requires a positive target_size", ct.Name)
			}
		}
	}
	return nil
}

// FindContainer returns the named container declaration.
func (c *Config) FindContainer(name string) (Container, bool) {
	for _, ct := range c.Containers {
		if ct.Name == name {
			return ct, true
		}
	}
	return Container{}, false
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return &config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "failed to generate secure key")
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key and saves it
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate API key")
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, errors.Wrap(err, "failed to save bootstrap config")
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./freyjawire.yaml"
	}

	// For Linux/macOS, use ~/.config/freyjawire/config.yaml
	configDir := filepath.Join(homeDir, ".config", "freyjawire")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
