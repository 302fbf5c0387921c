//go:build windows

package supervise

import (
	"os"
	"os/exec"
	"syscall"
)

// newProcessGroupAttr creates the child in a new process group. Windows has
// no setpgid; CREATE_NEW_PROCESS_GROUP is the closest equivalent.
func newProcessGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// interruptGroup sends an interrupt to the child. Windows cannot signal a
// whole group from here; os.Interrupt to the leader is best effort.
func interruptGroup(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}

// killGroup forcibly terminates the child.
func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
