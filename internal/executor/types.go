// Package executor runs a single curriculum test in an isolated child process.
//
// DirectExecutor runs one Command under a deadline, in its own process group,
// with a filtered environment and each output stream capped. TestRunner picks
// the runner command for an artifact's extension and reduces the Result to an
// Outcome. TestRunner.Run never returns an error.
//
// Every child is reaped: Wait always runs, the whole process group is killed
// on timeout or cancellation, and WaitDelay bounds how long inherited pipes
// may hold Wait open.
package executor

import (
	"context"
	"strings"
	"time"
)

// Command is one child process invocation.
type Command struct {
	Binary string
	Args   []string
	// Dir is the child's working directory. Empty means Config.Dir.
	Dir string
	// Env entries (KEY=VALUE) are added after the allow-listed variables.
	Env []string
	// Timeout of zero means Config.Timeout.
	Timeout time.Duration
	// OutputLimit caps each stream in bytes. Zero means Config.OutputLimit.
	OutputLimit int64
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Result describes how a child process ended.
type Result struct {
	// Launched is false when the binary could not be started or waited on.
	// Err then holds the reason.
	Launched bool
	Err      string

	// ExitCode is -1 unless the child exited on its own.
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// Killed is set when the deadline or the caller stopped the child.
	Killed   bool
	TimedOut bool
	Reason   string

	// Dropped counts bytes discarded from both streams by the output cap.
	Dropped int64
}

// Truncated reports whether either stream hit the output cap.
func (r *Result) Truncated() bool { return r.Dropped > 0 }

// Failed reports whether the child ran to completion with a non-zero exit.
func (r *Result) Failed() bool { return r.Launched && !r.Killed && r.ExitCode != 0 }

// Executor runs commands. The error return is only for commands that are
// malformed; anything that goes wrong at run time is in the Result.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// EventType names a step in a command's lifecycle.
type EventType string

const (
	EventStart    EventType = "start"
	EventComplete EventType = "complete"
	EventKilled   EventType = "killed"
	EventError    EventType = "error"
)

// Event is delivered to the observer registered with OnEvent.
type Event struct {
	Type    EventType
	At      time.Time
	Command Command
	Result  *Result
}

// Config holds the defaults applied to every Command.
type Config struct {
	Dir         string
	Timeout     time.Duration
	MaxTimeout  time.Duration // 0 = no ceiling
	OutputLimit int64
	WaitDelay   time.Duration
	// AllowedEnv lists the variables copied from the parent environment.
	AllowedEnv []string
}

// DefaultConfig returns the defaults for curriculum tests.
func DefaultConfig() Config {
	return Config{
		Dir:         ".",
		Timeout:     2 * time.Minute,
		MaxTimeout:  30 * time.Minute,
		OutputLimit: 6000,
		WaitDelay:   2 * time.Second,
		AllowedEnv:  []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR"},
	}
}

// resolve fills unset fields of cmd from c and clamps the timeout.
func (c Config) resolve(cmd Command) Command {
	if cmd.Dir == "" {
		cmd.Dir = c.Dir
	}
	if cmd.Timeout <= 0 {
		cmd.Timeout = c.Timeout
	}
	if c.MaxTimeout > 0 && cmd.Timeout > c.MaxTimeout {
		cmd.Timeout = c.MaxTimeout
	}
	if cmd.OutputLimit <= 0 {
		cmd.OutputLimit = c.OutputLimit
	}
	return cmd
}
