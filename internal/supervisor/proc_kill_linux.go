//go:build linux
// +build linux

package supervisor

import "syscall"

// killPid sends SIGKILL directly to pid. The engine is launched
// without its own process group (spec.md §4.4 kills a single pid, not
// a tree), so a plain signal suffices.
func killPid(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
