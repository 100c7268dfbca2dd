//go:build windows

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

// startOwnGroup starts the child in a new console process group.
func startOwnGroup(c *exec.Cmd) {
	if c.SysProcAttr == nil {
		c.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.SysProcAttr.CreationFlags |= createNewProcessGroup
}

// killGroup terminates the child. Grandchildren are not tracked here, so
// WaitDelay is what bounds their hold on the output pipes.
func killGroup(c *exec.Cmd) error {
	if c.Process == nil {
		return nil
	}
	if err := c.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
