package progress

import (
	"context"
	"fmt"

	"stepwise/internal/curriculum"
	"stepwise/internal/logging"
)

// Service computes progress reports. It holds no mutable state: every call
// rediscovers artifacts and rereads the pointer, so concurrent calls are
// independent.
type Service struct {
	testsDir    string
	pointerPath string
	runner      Runner
	opts        Options
}

// NewService creates a Service. runner is only used in executed mode.
func NewService(testsDir, pointerPath string, runner Runner, opts Options) *Service {
	return &Service{
		testsDir:    testsDir,
		pointerPath: pointerPath,
		runner:      runner,
		opts:        opts,
	}
}

// Options returns the options fixed at construction.
func (s *Service) Options() Options {
	return s.opts
}

// TestsDir returns the artifact directory.
func (s *Service) TestsDir() string { return s.testsDir }

// PointerPath returns the pointer document path.
func (s *Service) PointerPath() string { return s.pointerPath }

// Compute builds a report with the service's options.
func (s *Service) Compute(ctx context.Context) (Report, error) {
	return s.ComputeWith(ctx, s.opts)
}

// ComputeWith builds a report with explicit options. Errors are
// *curriculum.Error values in the ConfigurationMissing, ConfigurationInvalid
// or Internal categories.
func (s *Service) ComputeWith(ctx context.Context, opts Options) (Report, error) {
	timer := logging.StartTimer(logging.CategoryProgress, "Compute report")
	defer timer.Stop()

	artifacts := curriculum.Discover(s.testsDir)
	if len(artifacts) == 0 {
		logging.ProgressDebug("No artifacts in %s (%s)", s.testsDir, curriculum.CategoryDiscoveryEmpty)
	}

	var partial Partial
	switch {
	case opts.ForcePass:
		partial = ClassifyForcePass(opts.Mode, artifacts)

	case opts.Mode == ModeDeclared:
		pointer, err := curriculum.LoadPointer(s.pointerPath)
		if err != nil {
			logging.ProgressWarn("Declared mode unavailable: %v", err)
			return Report{}, err
		}
		partial = ClassifyDeclared(artifacts, *pointer)

	case opts.Mode == ModeExecuted:
		if s.runner == nil {
			return Report{}, &curriculum.Error{Category: curriculum.CategoryInternal, Message: "executed mode requires a test runner"}
		}
		partial = ClassifyExecuted(ctx, artifacts, s.runner)

	default:
		return Report{}, &curriculum.Error{
			Category: curriculum.CategoryConfigurationInvalid,
			Message:  fmt.Sprintf("unknown progress mode %q", opts.Mode),
		}
	}

	report := Assemble(partial)
	logging.Progress("Report: mode=%s total=%d passed=%d locked=%d forcePass=%t",
		report.Mode, report.Total, report.PassedCount, report.LockedCount, opts.ForcePass)
	return report, nil
}
