//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in a fresh session so the whole process
// tree can be signalled as one group and survives the parent's turn.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
