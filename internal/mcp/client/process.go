package client

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// maxStderrBytes bounds the captured stderr tail of a child.
const maxStderrBytes = 64 << 10

// tailBuffer keeps the last maxStderrBytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - maxStderrBytes; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

// process is a spawned capability server child. Its stdio is wired through
// os.Pipe pairs so that reaping the child does not close our ends.
type process struct {
	cmd    *exec.Cmd
	pid    int
	stdin  *os.File // write end of the child's stdin
	stdout *os.File // read end of the child's stdout
	stderr *tailBuffer

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

func spawn(executable string, args ...string) (*process, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	p := &process{
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: &tailBuffer{},
		done:   make(chan struct{}),
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = p.stderr
	cmd.SysProcAttr = sysProcAttr()

	err = cmd.Start()
	// The child holds its own copies now.
	stdinR.Close()
	stdoutW.Close()
	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		return nil, err
	}

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// exited reports whether the child has been reaped.
func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// exitStatus describes how the child ended. Only valid after done closes.
func (p *process) exitStatus() string {
	var exitErr *exec.ExitError
	switch {
	case p.waitErr == nil:
		return "exit status 0"
	case errors.As(p.waitErr, &exitErr):
		return exitErr.String()
	default:
		return p.waitErr.Error()
	}
}

// failureDetail prefers captured stderr over the bare exit status.
func (p *process) failureDetail() string {
	if s := p.stderr.String(); s != "" {
		return s
	}
	if p.exited() {
		return p.exitStatus()
	}
	return "unknown error"
}

func (p *process) closePipes() {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		p.stdout.Close()
	})
}
