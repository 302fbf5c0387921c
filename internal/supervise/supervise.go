// Package supervise launches and tears down the subprocesses a cosim run
// depends on. The simulation is an uncontrolled child: it is placed in its
// own process group so signaling it never touches the runner, and teardown
// escalates from interrupt to kill after a grace window.
package supervise

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Options controls how a child process is launched.
type Options struct {
	// Dir is the working directory for the child. Empty means inherit.
	Dir string

	// Env is the full environment for the child. Nil means inherit.
	Env []string

	// Stdout and Stderr receive the child's output streams. Nil means the
	// stream is connected to the runner's own stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Stdin connects the child's stdin. Nil means no input.
	Stdin io.Reader

	// NewProcessGroup detaches the child into its own process group so that
	// Terminate can signal the whole tree without hitting the parent.
	NewProcessGroup bool
}

// Handle tracks a launched child process until it exits.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}

	waitErr  error
	termOnce sync.Once
	termErr  error
}

// Launch starts name with args and begins reaping it in the background.
// The returned handle must be terminated exactly once, on every exit path
// of the caller, or the child may outlive the run.
func Launch(name string, args []string, opts Options) (*Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if opts.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if opts.NewProcessGroup {
		cmd.SysProcAttr = newProcessGroupAttr()
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	h := &Handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Exited reports whether the child has exited, without blocking. Polling
// loops use this to stop waiting on a dead process.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits and returns its exit code.
func (h *Handle) Wait() int {
	<-h.done
	return h.ExitCode()
}

// ExitCode returns the child's exit code, or -1 if it has not exited.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Terminate stops the child: an interrupt to its process group first, then,
// if it is still alive after grace, a forced kill. Safe to call after the
// child exited on its own, and safe to call more than once; only the first
// call does the work.
func (h *Handle) Terminate(grace time.Duration) error {
	h.termOnce.Do(func() {
		h.termErr = h.terminate(grace)
	})
	return h.termErr
}

func (h *Handle) terminate(grace time.Duration) error {
	if h.Exited() {
		return nil
	}

	// Interrupt the whole group so the simulator can flush its outputs.
	if err := interruptGroup(h.cmd); err != nil && !h.Exited() {
		// Fall through to the forced kill below.
		grace = 0
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	if err := killGroup(h.cmd); err != nil && !h.Exited() {
		return fmt.Errorf("killing pid %d: %w", h.Pid(), err)
	}
	<-h.done
	return nil
}
