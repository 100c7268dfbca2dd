// Package progress classifies discovered curriculum artifacts into a
// progress report. Two modes are supported: declared, where a pointer
// document names the current step, and executed, where the lowest step's
// test is run to decide whether the learner may advance.
package progress

import (
	"fmt"
	"strings"

	"stepwise/internal/config"
)

// Mode selects how the current position is determined.
type Mode string

const (
	ModeDeclared Mode = config.ModeDeclared
	ModeExecuted Mode = config.ModeExecuted
)

// ParseMode accepts "declared" or "executed", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDeclared, ModeExecuted:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q (valid: %s, %s)", s, ModeDeclared, ModeExecuted)
}

// Options are fixed when a Service is built and may be overridden per call.
type Options struct {
	Mode Mode
	// ForcePass reports every artifact as passed without consulting the
	// pointer or running anything.
	ForcePass bool
}

// OptionsFromConfig reads the progress section of the application config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := ParseMode(cfg.Progress.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{Mode: mode, ForcePass: cfg.Progress.ForcePass}, nil
}
