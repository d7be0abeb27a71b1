package server

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 4 << 20

// Config holds the configuration for the HTTP API
type Config struct {
	Port           string `yaml:"port"`
	DefaultDialect string `yaml:"default_dialect"`
	TokenizerModel string `yaml:"tokenizer_model"`
	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Port:           "8080",
		DefaultDialect: string(toolcall.DialectClaude),
		TokenizerModel: "cl100k_base",
		LogLevel:       "info",
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// LoadConfigFile overlays the YAML file at path onto c. Keys missing from
// the file keep their current value.
func (c *Config) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch toolcall.Dialect(c.DefaultDialect) {
	case toolcall.DialectClaude, toolcall.DialectQwen:
	default:
		return fmt.Errorf("invalid default dialect %q: must be claude or qwen", c.DefaultDialect)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	return nil
}
