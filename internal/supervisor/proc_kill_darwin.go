//go:build darwin
// +build darwin

package supervisor

import "syscall"

func killPid(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
