//go:build !windows

package daemon

import "syscall"

// IsRunning checks if the PID file exists and the process is alive.
// Returns the PID and whether the process is running.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
