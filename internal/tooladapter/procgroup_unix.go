//go:build unix

package tooladapter

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setpgid puts cmd in its own process group so a later cancellation can
// kill every descendant it spawned, not just the immediate child.
func setpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killOnCancel watches ctx and SIGKILLs cmd's entire process group the
// moment it's canceled, then returns a stop func the caller defers to
// avoid leaking the watcher goroutine on the normal-exit path.
func killOnCancel(ctx context.Context, cmd *exec.Cmd) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if cmd.Process != nil {
				unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}
