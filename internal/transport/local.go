// ABOUTME: Local transport driver: runs commands as direct child processes
// ABOUTME: Each run gets its own process group so timeout/cancellation can reach grandchildren

package transport

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/taskerd/tasker/pkg/types"
)

// LocalDriver runs commands as local subprocesses.
type LocalDriver struct{}

// NewLocalDriver creates the "local" exec_type driver.
func NewLocalDriver() *LocalDriver {
	return &LocalDriver{}
}

// Run implements types.TransportDriver. hostname is ignored for local
// execution. The child is placed in its own process group (Setpgid) so
// that on timeout or cancellation the whole tree can be killed with one
// signal to -pgid, not just the immediate child.
func (d *LocalDriver) Run(ctx context.Context, hostname, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(command, arguments...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return types.TransportResult{}, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				return types.TransportResult{}, err
			}
		}
		return types.TransportResult{ExitCode: exitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil

	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-done // reap so the child does not become a zombie
		return types.TransportResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			TimedOut: true,
		}, nil
	}
}

// killProcessGroup sends SIGKILL to the process group rooted at cmd's
// pid, reaching any descendants the command itself spawned.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
