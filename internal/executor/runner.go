package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stepwise/internal/config"
	"stepwise/internal/logging"
)

// defaultRunners maps an artifact extension to the command that runs it.
// The artifact path is appended as the last argument.
var defaultRunners = map[string][]string{
	".js":  {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".mjs": {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".cjs": {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".jsx": {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".ts":  {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".tsx": {"npx", "jest", "--runInBand", "--colors=false", "--runTestsByPath"},
	".py":  {"python3", "-m", "pytest", "-q"},
	".sh":  {"sh"},
	".rb":  {"rspec"},
}

// fallbackExtension names the runner used for extensions nobody claimed.
const fallbackExtension = ".js"

// DefaultRunners returns a copy of the built-in extension table.
func DefaultRunners() map[string][]string {
	out := make(map[string][]string, len(defaultRunners))
	for ext, argv := range defaultRunners {
		out[ext] = append([]string(nil), argv...)
	}
	return out
}

// Kind classifies an Outcome.
type Kind string

const (
	KindPassed        Kind = "Passed"
	KindNonZeroExit   Kind = "ExecutionNonZeroExit"
	KindLaunchFailure Kind = "ExecutionLaunchFailure"
	KindTimedOut      Kind = "ExecutionTimedOut"
	KindCanceled      Kind = "ExecutionCanceled"
)

// Outcome is the reduced result of running one test artifact.
type Outcome struct {
	File   string
	Passed bool
	// ExitCode is nil when the child was killed before it exited.
	// Launch failures report -1.
	ExitCode *int
	Stdout   string
	Stderr   string
	// ErrorMessage is a one-line summary, set only when Passed is false.
	ErrorMessage    string
	InvocationError string
	TimedOut        bool
	Duration        time.Duration
	Kind            Kind
}

// TestRunner runs one curriculum artifact with the runner for its extension.
type TestRunner struct {
	exec    Executor
	runners map[string][]string
	workDir string
	timeout time.Duration
}

// RunnerOption customizes a TestRunner.
type RunnerOption func(*TestRunner)

// WithExecutor replaces the process executor.
func WithExecutor(e Executor) RunnerOption {
	return func(r *TestRunner) { r.exec = e }
}

// WithRunners merges extension overrides on top of the defaults.
func WithRunners(runners map[string][]string) RunnerOption {
	return func(r *TestRunner) {
		for ext, argv := range runners {
			if len(argv) == 0 {
				continue
			}
			r.runners[normalizeExt(ext)] = append([]string(nil), argv...)
		}
	}
}

// WithWorkingDirectory fixes the child's working directory.
func WithWorkingDirectory(dir string) RunnerOption {
	return func(r *TestRunner) { r.workDir = dir }
}

// WithTimeout sets the per-test timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *TestRunner) { r.timeout = d }
}

// NewTestRunner creates a runner over a DirectExecutor whose lifecycle
// events are logged.
func NewTestRunner(opts ...RunnerOption) *TestRunner {
	r := &TestRunner{runners: DefaultRunners()}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		direct := NewDirectExecutor(DefaultConfig())
		direct.OnEvent(logEvent)
		r.exec = direct
	}
	return r
}

// NewTestRunnerFromConfig builds a runner from the execution section of the
// application config.
func NewTestRunnerFromConfig(cfg *config.Config) *TestRunner {
	ec := DefaultConfig()
	ec.Timeout = cfg.ExecutionTimeout()
	if ec.Timeout > ec.MaxTimeout {
		ec.MaxTimeout = ec.Timeout
	}
	if cfg.Execution.MaxOutputBytes > 0 {
		ec.OutputLimit = cfg.Execution.MaxOutputBytes
	}
	if len(cfg.Execution.AllowedEnvVars) > 0 {
		ec.AllowedEnv = append([]string(nil), cfg.Execution.AllowedEnvVars...)
	}

	direct := NewDirectExecutor(ec)
	direct.OnEvent(logEvent)

	return NewTestRunner(
		WithExecutor(direct),
		WithRunners(cfg.Execution.Runners),
		WithWorkingDirectory(cfg.Execution.WorkingDirectory),
		WithTimeout(ec.Timeout),
	)
}

// Extensions lists the extensions with a registered runner, sorted.
func (r *TestRunner) Extensions() []string {
	exts := make([]string, 0, len(r.runners))
	for ext := range r.runners {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// CommandFor builds the command that runs the artifact at path.
func (r *TestRunner) CommandFor(path string) Command {
	ext := strings.ToLower(filepath.Ext(path))
	argv, ok := r.runners[ext]
	if !ok {
		logging.ExecutorDebug("No runner for %q, falling back to %s runner", ext, fallbackExtension)
		argv = r.runners[fallbackExtension]
	}
	if len(argv) == 0 {
		argv = defaultRunners[fallbackExtension]
	}

	args := append(append([]string(nil), argv[1:]...), path)

	dir := r.workDir
	if dir == "" {
		dir = filepath.Dir(filepath.Dir(path))
	}

	return Command{
		Binary:  argv[0],
		Args:    args,
		Dir:     dir,
		Timeout: r.timeout,
	}
}

// Run executes the test at path and reports how it went. It never fails:
// every problem, including a runner that cannot be started, is described by
// the returned Outcome.
func (r *TestRunner) Run(ctx context.Context, path string) Outcome {
	cmd := r.CommandFor(path)
	outcome := Outcome{File: path}

	result, err := r.exec.Execute(ctx, cmd)
	if err != nil {
		return launchFailure(outcome, "", err.Error())
	}

	outcome.Stdout = result.Stdout
	outcome.Stderr = result.Stderr
	outcome.Duration = result.Duration

	switch {
	case !result.Launched:
		return launchFailure(outcome, result.Stderr, result.Err)
	case result.TimedOut:
		outcome.TimedOut = true
		outcome.Kind = KindTimedOut
		outcome.ErrorMessage = "test killed: " + result.Reason
	case result.Killed:
		outcome.Kind = KindCanceled
		outcome.ErrorMessage = "test killed: " + result.Reason
	case result.ExitCode == 0:
		code := 0
		outcome.ExitCode = &code
		outcome.Passed = true
		outcome.Kind = KindPassed
	default:
		code := result.ExitCode
		outcome.ExitCode = &code
		outcome.Kind = KindNonZeroExit
		outcome.ErrorMessage = Summary(outcome.Stdout, outcome.Stderr)
	}

	logging.Executor("Ran %s: kind=%s duration=%s", filepath.Base(path), outcome.Kind, outcome.Duration)
	return outcome
}

func launchFailure(o Outcome, stderr, reason string) Outcome {
	code := -1
	o.ExitCode = &code
	o.Kind = KindLaunchFailure
	o.InvocationError = reason

	msg := "failed to launch test runner: " + reason
	if stderr != "" && !strings.HasSuffix(stderr, "\n") {
		stderr += "\n"
	}
	o.Stderr = stderr + msg
	o.ErrorMessage = Summary(o.Stdout, o.Stderr)

	logging.ExecutorWarn("Could not launch runner for %s: %s", filepath.Base(o.File), reason)
	return o
}

// Summary picks the first non-blank line of stderr, then of stdout, else
// "test failed".
func Summary(stdout, stderr string) string {
	for _, stream := range []string{stderr, stdout} {
		for _, line := range strings.Split(stream, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				return trimmed
			}
		}
	}
	return "test failed"
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func logEvent(ev Event) {
	log := logging.Get(logging.CategoryExecutor).With("event", string(ev.Type), "binary", ev.Command.Binary)
	switch ev.Type {
	case EventStart:
		log.Debug("start %s in %s", ev.Command, ev.Command.Dir)
	case EventKilled:
		log.Warn("killed: %s", ev.Result.Reason)
	case EventError:
		log.Warn("launch error: %s", ev.Result.Err)
	default:
		log.Debug("complete exit=%d duration=%s", ev.Result.ExitCode, ev.Result.Duration)
	}
}

// String is a compact description used in logs.
func (o Outcome) String() string {
	code := "none"
	if o.ExitCode != nil {
		code = fmt.Sprint(*o.ExitCode)
	}
	return fmt.Sprintf("%s passed=%t exit=%s timedOut=%t", filepath.Base(o.File), o.Passed, code, o.TimedOut)
}
