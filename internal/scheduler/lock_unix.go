//go:build linux || darwin

package scheduler

import (
	"fmt"
	"os"
	"syscall"
)

// tryLockFile takes a non-blocking exclusive flock on f, returning an
// error if another process already holds it.
func tryLockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock already held: %w", err)
	}
	return nil
}

func unlockFile(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
