package config

// ExecutionConfig configures the isolated test runner.
type ExecutionConfig struct {
	// Per-test timeout (Go duration string)
	Timeout string `yaml:"timeout" json:"timeout,omitempty"`

	// Byte ceiling for each captured stream
	MaxOutputBytes int64 `yaml:"max_output_bytes" json:"max_output_bytes,omitempty"`

	// Working directory; empty means the parent of the tests directory
	WorkingDirectory string `yaml:"working_directory" json:"working_directory,omitempty"`

	// Environment variables to pass through to the child
	AllowedEnvVars []string `yaml:"allowed_env_vars" json:"allowed_env_vars,omitempty"`

	// Runner argv per artifact extension, e.g. ".js": [npx, jest]
	Runners map[string][]string `yaml:"runners" json:"runners,omitempty"`
}
