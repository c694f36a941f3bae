//go:build windows

package snapshot

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// terminateProcessGroup has no graceful-term equivalent on Windows; the
// watchdog falls straight through to killProcessGroup.
func terminateProcessGroup(cmd *exec.Cmd) error {
	return nil
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
