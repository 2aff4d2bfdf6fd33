package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// Child is the process handle the supervisor drives: a spawned agent
// running under a pty, the same start-under-pty/wait shape used for
// production child management here instead of test-only interaction.
type Child struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

// StartChild starts cmd under a pty and returns the running Child.
func StartChild(cmd *exec.Cmd) (*Child, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &Child{cmd: cmd, ptmx: ptmx}, nil
}

// PID returns the child's process id, or 0 if it never started.
func (c *Child) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stop sends a polite terminate signal (graceful) or force-kills the child.
func (c *Child) Stop(graceful bool) error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	if graceful {
		return c.cmd.Process.Signal(syscall.SIGTERM)
	}
	return c.cmd.Process.Kill()
}

// Wait blocks until the child exits, returning its exit code. A non-zero
// exit that isn't an *exec.ExitError (e.g. the process was never started)
// is returned as an error instead.
func (c *Child) Wait() (int, error) {
	err := c.cmd.Wait()
	_ = c.ptmx.Close()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
