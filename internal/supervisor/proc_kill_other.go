//go:build !linux && !darwin
// +build !linux,!darwin

package supervisor

import (
	"fmt"
	"os"
)

// killPid falls back to os.Process.Kill on platforms without SIGKILL
// semantics. Process-table Enumerate is Linux-specific (`ps -C`) and
// is expected to return an empty map here; this exists only so the
// package still builds.
func killPid(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Kill()
}
