//go:build !unix

package sandbox

import (
	"os/exec"
)

func exitSignal(*exec.ExitError) string {
	return ""
}

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
