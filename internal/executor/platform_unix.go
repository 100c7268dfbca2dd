//go:build !windows

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// startOwnGroup makes the child the leader of a new process group.
func startOwnGroup(c *exec.Cmd) {
	if c.SysProcAttr == nil {
		c.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.SysProcAttr.Setpgid = true
}

// killGroup sends SIGKILL to the child's whole process group. The child is
// the group leader, so the group id is its pid, and the group can still be
// signalled after the leader has been reaped.
func killGroup(c *exec.Cmd) error {
	if c.Process == nil || c.Process.Pid <= 0 {
		return nil
	}
	_ = syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	if err := c.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
