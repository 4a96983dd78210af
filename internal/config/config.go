// Package config handles configuration parsing for switch-console.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/switch-console/config.yaml or ~/.config/switch-console/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "switch-console", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Console     ConsoleConfig     `yaml:"console"`
	Device      DeviceConfig      `yaml:"device"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Security    SecurityConfig    `yaml:"security"`
	Logging     LoggingConfig     `yaml:"logging"`
	PromptRules []RuleConfig      `yaml:"prompt_rules"`
}

// SecurityConfig defines command filtering settings.
type SecurityConfig struct {
	CommandBlocklist []string `yaml:"command_blocklist"` // regex patterns for blocked commands
	CommandAllowlist []string `yaml:"command_allowlist"` // if set, only these patterns allowed
	DefaultBlocklist bool     `yaml:"default_blocklist"` // include the built-in destructive-command patterns
}

// ConsoleConfig defines how to reach the device console.
type ConsoleConfig struct {
	Kind        string   `yaml:"kind"`         // "tcp", "ssh", or "pty"
	Address     string   `yaml:"address"`      // host:port for tcp and ssh
	User        string   `yaml:"user"`         // login user for ssh terminal servers
	PasswordEnv string   `yaml:"password_env"` // env var with the ssh terminal server password
	Command     []string `yaml:"command"`      // argv for pty consoles, e.g. ["cu", "-l", "/dev/ttyUSB0"]
}

// DeviceConfig describes the device behind the console.
type DeviceConfig struct {
	Model string `yaml:"model"`
}

// CredentialsConfig names where device credentials come from. Secrets never
// live in the config file itself, only environment variable names or the OS
// keyring.
type CredentialsConfig struct {
	UsernameEnv       string `yaml:"username_env"`        // env var containing device username
	PasswordEnv       string `yaml:"password_env"`        // env var containing device password
	EnablePasswordEnv string `yaml:"enable_password_env"` // env var containing enable secret
	UseKeyring        bool   `yaml:"use_keyring"`         // fall back to the OS keyring
}

// TimeoutsConfig defines session timing.
type TimeoutsConfig struct {
	Response     time.Duration `yaml:"response"`      // per-command read timeout
	Connect      time.Duration `yaml:"connect"`       // first prompt wait on connect
	ReadInterval time.Duration `yaml:"read_interval"` // transport poll interval
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// RuleConfig defines an extra prompt classification rule, tried before the
// built-in rules.
type RuleConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
	State string `yaml:"state"` // SessionState name the rule maps to
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			Kind: "tcp",
		},
		Credentials: CredentialsConfig{
			UsernameEnv:       "SWITCH_USERNAME",
			PasswordEnv:       "SWITCH_PASSWORD",
			EnablePasswordEnv: "SWITCH_ENABLE_PASSWORD",
		},
		Timeouts: TimeoutsConfig{
			Response:     10 * time.Second,
			Connect:      15 * time.Second,
			ReadInterval: 150 * time.Millisecond,
		},
		Security: SecurityConfig{
			DefaultBlocklist: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration and fills gaps with defaults.
func (c *Config) Validate() error {
	switch c.Console.Kind {
	case "tcp", "ssh":
		if c.Console.Address == "" {
			return fmt.Errorf("console kind %q requires an address", c.Console.Kind)
		}
	case "pty":
		if len(c.Console.Command) == 0 {
			return fmt.Errorf("console kind %q requires a command", c.Console.Kind)
		}
	default:
		return fmt.Errorf("unknown console kind %q", c.Console.Kind)
	}

	if c.Timeouts.Response <= 0 {
		c.Timeouts.Response = 10 * time.Second
	}
	if c.Timeouts.Connect <= 0 {
		c.Timeouts.Connect = 15 * time.Second
	}
	if c.Timeouts.ReadInterval <= 0 {
		c.Timeouts.ReadInterval = 150 * time.Millisecond
	}

	for _, r := range c.PromptRules {
		if r.Name == "" || r.Regex == "" || r.State == "" {
			return fmt.Errorf("prompt rule %q needs name, regex, and state", r.Name)
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
