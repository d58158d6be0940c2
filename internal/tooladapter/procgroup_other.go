//go:build !unix

package tooladapter

import (
	"context"
	"os/exec"
)

func setpgid(cmd *exec.Cmd) {}

func killOnCancel(ctx context.Context, cmd *exec.Cmd) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}
