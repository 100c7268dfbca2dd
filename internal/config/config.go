package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Progress modes accepted in progress.mode.
const (
	ModeDeclared = "declared"
	ModeExecuted = "executed"
)

// DefaultConfigFile is looked up in the working directory when no --config is given.
const DefaultConfigFile = "stepwise.yaml"

// Config holds all stepwise configuration.
type Config struct {
	// Curriculum inputs (artifact directory, pointer document)
	Curriculum CurriculumConfig `yaml:"curriculum"`

	// Progress classification mode
	Progress ProgressConfig `yaml:"progress"`

	// Execution settings for the isolated test runner
	Execution ExecutionConfig `yaml:"execution"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CurriculumConfig locates the on-disk curriculum.
type CurriculumConfig struct {
	TestsDir    string `yaml:"tests_dir"`
	PointerFile string `yaml:"pointer_file"`
}

// ProgressConfig selects how progress is computed.
type ProgressConfig struct {
	Mode      string `yaml:"mode"` // declared, executed
	ForcePass bool   `yaml:"force_pass"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeout    string `yaml:"read_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	IdleTimeout    string `yaml:"idle_timeout"`
	MaxConnections int    `yaml:"max_connections"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Curriculum: CurriculumConfig{
			TestsDir:    "tests",
			PointerFile: "progress.yaml",
		},

		Progress: ProgressConfig{
			Mode: ModeDeclared,
		},

		Execution: ExecutionConfig{
			Timeout:        "2m",
			MaxOutputBytes: 6000,
			AllowedEnvVars: []string{
				"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR",
				"NODE_PATH", "NODE_OPTIONS", "PYTHONPATH", "GOPATH", "GOROOT",
			},
		},

		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			ReadTimeout:    "30s",
			WriteTimeout:   "5m",
			IdleTimeout:    "60s",
			MaxConnections: 64,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("STEPWISE_TESTS_DIR"); dir != "" {
		c.Curriculum.TestsDir = dir
	}
	if path := os.Getenv("STEPWISE_POINTER"); path != "" {
		c.Curriculum.PointerFile = path
	}
	if mode := os.Getenv("STEPWISE_MODE"); mode != "" {
		c.Progress.Mode = strings.ToLower(strings.TrimSpace(mode))
	}
	if v := os.Getenv("STEPWISE_FORCE_PASS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Progress.ForcePass = b
		}
	}
	if v := os.Getenv("STEPWISE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// ValidModes lists the supported progress modes.
var ValidModes = []string{ModeDeclared, ModeExecuted}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validMode := false
	for _, m := range ValidModes {
		if c.Progress.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid progress mode: %q (valid: %v)", c.Progress.Mode, ValidModes)
	}

	if c.Curriculum.TestsDir == "" {
		return fmt.Errorf("curriculum.tests_dir must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Execution.Timeout != "" {
		if _, err := time.ParseDuration(c.Execution.Timeout); err != nil {
			return fmt.Errorf("invalid execution.timeout %q: %w", c.Execution.Timeout, err)
		}
	}

	for ext, argv := range c.Execution.Runners {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("runner key %q must start with a dot", ext)
		}
		if len(argv) == 0 || argv[0] == "" {
			return fmt.Errorf("runner for %s has no binary", ext)
		}
	}

	return nil
}

// ExecutionTimeout returns the per-test timeout as a duration.
func (c *Config) ExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// ReadTimeout returns the server read timeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return parseDurationOr(c.Server.ReadTimeout, 30*time.Second)
}

// WriteTimeout returns the server write timeout as a duration.
// The server raises it to outlast ExecutionTimeout.
func (c *Config) WriteTimeout() time.Duration {
	return parseDurationOr(c.Server.WriteTimeout, 5*time.Minute)
}

// IdleTimeout returns the server idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return parseDurationOr(c.Server.IdleTimeout, 60*time.Second)
}

// Address returns host:port for the listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
