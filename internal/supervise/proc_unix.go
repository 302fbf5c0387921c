//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"
)

// newProcessGroupAttr makes the child the leader of a fresh process group,
// so group signals reach it and any children it spawns.
func newProcessGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// interruptGroup delivers SIGINT to the child's process group. A negative
// pid addresses the group rather than the single process.
func interruptGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}

// killGroup delivers SIGKILL to the child's process group.
func killGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
