package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"stepwise/internal/logging"
)

// DirectExecutor runs commands on the host with os/exec.
type DirectExecutor struct {
	cfg Config

	mu      sync.RWMutex
	observe func(Event)
}

// NewDirectExecutor creates an executor with the given defaults.
func NewDirectExecutor(cfg Config) *DirectExecutor {
	logging.ExecutorDebug("DirectExecutor: timeout=%s outputLimit=%d env=%v",
		cfg.Timeout, cfg.OutputLimit, cfg.AllowedEnv)
	return &DirectExecutor{cfg: cfg}
}

// Config returns the executor defaults.
func (e *DirectExecutor) Config() Config { return e.cfg }

// OnEvent registers fn to receive lifecycle events. nil disables it.
func (e *DirectExecutor) OnEvent(fn func(Event)) {
	e.mu.Lock()
	e.observe = fn
	e.mu.Unlock()
}

func (e *DirectExecutor) emit(typ EventType, cmd Command, res *Result) {
	e.mu.RLock()
	fn := e.observe
	e.mu.RUnlock()
	if fn != nil {
		fn(Event{Type: typ, At: time.Now(), Command: cmd, Result: res})
	}
}

// Execute runs cmd to completion, timeout or cancellation of ctx.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("executor: command has no binary")
	}
	timer := logging.StartTimer(logging.CategoryExecutor, "execute "+cmd.Binary)
	defer timer.Stop()

	cmd = e.cfg.resolve(cmd)
	e.emit(EventStart, cmd, nil)

	runCtx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	stdout := &capBuffer{limit: cmd.OutputLimit}
	stderr := &capBuffer{limit: cmd.OutputLimit}

	child := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...)
	child.Dir = cmd.Dir
	child.Env = e.environ(cmd.Env)
	child.Stdout = stdout
	child.Stderr = stderr
	child.WaitDelay = e.cfg.WaitDelay
	startOwnGroup(child)
	child.Cancel = func() error { return killGroup(child) }

	started := time.Now()
	err := child.Run()
	// The leader is gone, but helpers it backgrounded may still hold the
	// group; none of them may outlive the run.
	_ = killGroup(child)

	res := &Result{
		Launched: true,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
		Dropped:  stdout.dropped + stderr.dropped,
	}
	if res.Truncated() {
		logging.ExecutorDebug("%s: %d output bytes dropped", cmd.Binary, res.Dropped)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Killed, res.TimedOut = true, true
		res.Reason = fmt.Sprintf("timeout after %s", cmd.Timeout)
		logging.ExecutorWarn("%s killed: %s", cmd, res.Reason)
		e.emit(EventKilled, cmd, res)
		return res, nil
	case ctx.Err() != nil:
		res.Killed = true
		res.Reason = fmt.Sprintf("canceled: %v", ctx.Err())
		logging.ExecutorDebug("%s %s", cmd, res.Reason)
		e.emit(EventKilled, cmd, res)
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && child.ProcessState != nil:
		// The child exited but a background process kept its output open.
		res.ExitCode = child.ProcessState.ExitCode()
		logging.ExecutorDebug("%s left output open after exiting; pipes closed after %s", cmd, e.cfg.WaitDelay)
	default:
		res.Launched = false
		res.Err = err.Error()
		logging.ExecutorError("%s could not run: %v", cmd, err)
		e.emit(EventError, cmd, res)
		return res, nil
	}

	logging.Executor("%s exited %d in %s (stdout=%dB stderr=%dB)",
		cmd, res.ExitCode, res.Duration, len(res.Stdout), len(res.Stderr))
	e.emit(EventComplete, cmd, res)
	return res, nil
}

// environ returns the allow-listed parent variables followed by extra.
func (e *DirectExecutor) environ(extra []string) []string {
	env := make([]string, 0, len(e.cfg.AllowedEnv)+len(extra))
	for _, key := range e.cfg.AllowedEnv {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return append(env, extra...)
}

func truncationMarker(dropped int64) string {
	return fmt.Sprintf("\n... [output truncated: %d bytes omitted]", dropped)
}

// capBuffer keeps the first limit bytes written and counts the rest.
// A limit of zero or less keeps everything.
type capBuffer struct {
	buf     bytes.Buffer
	limit   int64
	dropped int64
}

// Write always reports len(p) so the child never sees a short write.
func (c *capBuffer) Write(p []byte) (int, error) {
	if c.limit <= 0 {
		return c.buf.Write(p)
	}
	room := c.limit - int64(c.buf.Len())
	switch {
	case room <= 0:
		c.dropped += int64(len(p))
	case int64(len(p)) > room:
		c.buf.Write(p[:room])
		c.dropped += int64(len(p)) - room
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

// String returns the kept bytes plus a marker when anything was dropped.
func (c *capBuffer) String() string {
	if c.dropped == 0 {
		return c.buf.String()
	}
	return c.buf.String() + truncationMarker(c.dropped)
}
