//go:build windows

package reminder

import (
	"os"
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

// setDaemonAttrs starts the child without a console in its own process group.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | detachedProcess,
		HideWindow:    true,
	}
}

// ShutdownSignals returns the OS signals that end a foreground reminder.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
