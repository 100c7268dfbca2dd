package config

// LoggingConfig selects the log level, encoding, sinks and categories.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format,omitempty"` // json, console
	// File is written in addition to stderr when set.
	File string `yaml:"file" json:"file,omitempty"`
	// Categories switches individual categories off; unlisted ones stay on.
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

// IsCategoryEnabled reports whether a category should log.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	enabled, listed := c.Categories[category]
	return !listed || enabled
}
