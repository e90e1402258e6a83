//go:build windows

package client

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// terminate has no graceful form on Windows; the child is killed outright.
func (p *process) terminate() error {
	return p.cmd.Process.Kill()
}

func (p *process) kill() error {
	return p.cmd.Process.Kill()
}
