package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/pkg/logger"
)

// lockHandle is a held advisory lock; Release must be called exactly
// once, regardless of how the lock was acquired.
type lockHandle struct {
	f *os.File
}

func (h *lockHandle) Release() {
	if h == nil || h.f == nil {
		return
	}
	unlockFile(h.f)
	h.f.Close()
}

// acquireLock resolves spec.md §9's "what happens if two scheduler
// passes overlap" open question: an flock(2) advisory lock on a fixed
// file, held for the duration of one Pass. Unlike an in-process mutex
// it is cross-process and the kernel releases it automatically if the
// holder is SIGKILLed mid-pass, so a crashed scheduler can never wedge
// the lock for the next cron tick.
func acquireLock(path string) (*lockHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := tryLockFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return &lockHandle{f: f}, nil
}

// RunOnce acquires the advisory lock, runs a single Pass, and releases
// it. If the lock is already held by another pass, it returns nil
// without error: spec.md §9 treats an overlapping pass as a no-op,
// not a failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	lock, err := acquireLock(s.cfg.LockFile)
	if err != nil {
		logger.Warn("task", "scheduler pass already in progress, skipping")
		return nil
	}
	defer lock.Release()

	return s.Pass(ctx)
}

// RunDaemon runs RunOnce in a loop with cfg.SleepSec between
// iterations, until ctx is cancelled. It is the body kardianos/service
// drives in the scheduler's daemon mode (cmd/scheduler).
func RunDaemon(ctx context.Context, cfg *config.Config, s *Scheduler) error {
	sleep := time.Duration(cfg.SleepSec) * time.Second
	if sleep <= 0 {
		sleep = 5 * time.Second
	}
	for {
		if err := s.RunOnce(ctx); err != nil {
			logger.Error("task", "scheduler pass failed", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}
