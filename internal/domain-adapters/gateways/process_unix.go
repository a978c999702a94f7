//go:build unix

package gateways

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the command in its own process group so that a
// timeout also stops Gradle daemons and other children it spawned.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
