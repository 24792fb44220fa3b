//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the interpreter in its own process group so terminal
// interrupts reach only the shell, and cancellation kills every descendant.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
