//go:build !windows

package client

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in its own process group so that signals reach
// anything it spawns.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the child's process group to exit.
func (p *process) terminate() error {
	if err := unix.Kill(-p.pid, unix.SIGTERM); err != nil {
		return p.cmd.Process.Signal(unix.SIGTERM)
	}
	return nil
}

// kill force-stops the child's process group.
func (p *process) kill() error {
	if err := unix.Kill(-p.pid, unix.SIGKILL); err != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}
