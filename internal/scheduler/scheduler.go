// Package scheduler implements the Scheduler/Reaper (C5, spec.md
// §4.5) — the core algorithm of this system. One call to Pass is one
// control-loop invocation: reap stuck jobs, compute free capacity,
// admit pending work FIFO, dispatch it to the Process Supervisor, and
// wait for dispatched handles to finish. It is grounded on the
// teacher's internal/queue.TaskQueue (RunningJob tracking, the
// worker/reap split) generalized from an in-process channel of
// in-memory workers to the spec's OS-process-table-backed model.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ikretus/asr/internal/budget"
	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/layout"
	"github.com/ikretus/asr/internal/models"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/internal/supervisor"
	"github.com/ikretus/asr/pkg/logger"
)

// Scheduler runs control-loop passes against a Store and the host's
// process table.
type Scheduler struct {
	cfg   *config.Config
	store store.Store

	// enumerate and now are seams for tests; production code uses
	// supervisor.Enumerate and time.Now.
	enumerate func(execName string) (map[string]int, error)
	now       func() time.Time
}

// New builds a Scheduler over cfg and st.
func New(cfg *config.Config, st store.Store) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     st,
		enumerate: supervisor.Enumerate,
		now:       time.Now,
	}
}

// transcriptDoc is the engine's JSON sidecar shape; only the
// "transcription" key is persisted into result (spec.md §4.5, §9:
// "downstream schema changes should extend, not replace, this key
// path").
type transcriptDoc struct {
	Transcription json.RawMessage `json:"transcription"`
}

// reapDecision is the outcome R1 computes for one in-flight row,
// before any DB write is issued.
type reapDecision struct {
	auid      string
	audioPath string
	action    string // "kill", "resume", "fail_attempt", "none"
	pid       int
}

// Pass runs one control-loop invocation: R1 reap, R2 capacity, R3
// admit, R4 dispatch, R5 wait. It returns an error only for a failed
// process-table enumeration or a DB failure, either of which aborts
// the whole pass (spec.md §7: "no writes happen — next pass retries");
// per-job failures are absorbed into mark_failed calls and never
// propagate.
func (s *Scheduler) Pass(ctx context.Context) error {
	procMap, err := s.enumerate(execBase(s.cfg.Whisper))
	if err != nil {
		return fmt.Errorf("enumerate engine processes: %w", err)
	}

	if err := s.reap(ctx, procMap); err != nil {
		return err
	}

	freeSlots := s.cfg.MaxCPU - len(procMap)
	if freeSlots <= 0 {
		logger.Info("task", fmt.Sprintf("no free slots (max_cpu=%d, in_flight=%d)", s.cfg.MaxCPU, len(procMap)))
		return nil
	}

	admitted, err := s.admit(ctx, freeSlots)
	if err != nil {
		return err
	}
	if len(admitted) == 0 {
		return nil
	}

	handles, err := s.dispatch(ctx, admitted)
	if err != nil {
		return err
	}

	s.wait(ctx, handles)
	return nil
}

// reap implements R1. In-flight rows are read from the Store, and the
// pid map from the Supervisor; rows whose elapsed time exceeds their
// budget-derived ttl are resolved per spec.md §4.5. Stat + budget
// computation across rows is independent and runs concurrently via
// errgroup; the resulting decisions are then applied as serialized,
// single-row DB writes (reap decisions are row-local and commute, per
// spec.md §4.5 Tie-breaks).
func (s *Scheduler) reap(ctx context.Context, procMap map[string]int) error {
	inFlight, err := s.store.InFlight(ctx)
	if err != nil {
		return fmt.Errorf("reap: list in-flight jobs: %w", err)
	}

	decisions := make([]reapDecision, len(inFlight))
	g, gctx := errgroup.WithContext(ctx)
	for i := range inFlight {
		i := i
		row := inFlight[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			decisions[i] = s.classifyInFlight(row, procMap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reap: classify in-flight jobs: %w", err)
	}

	nActual, nReported := len(procMap), len(inFlight)
	for _, d := range decisions {
		switch d.action {
		case "kill":
			supervisor.Kill(d.auid, d.pid)
			delete(procMap, d.audioPath)
			if err := s.store.MarkFailed(ctx, d.auid, "killed:toolong"); err != nil {
				return fmt.Errorf("reap: mark_failed(killed:toolong) for %s: %w", d.auid, err)
			}
			logger.Warn(d.auid, "killed: processing too long")
		case "resume":
			if err := s.store.MarkProcessing(ctx, d.auid, nil); err != nil {
				return fmt.Errorf("reap: mark_processing(resume) for %s: %w", d.auid, err)
			}
			logger.Warn(d.auid, "resumed: 2nd attempt")
		case "fail_attempt":
			if err := s.store.MarkFailed(ctx, d.auid, "failed:attempt"); err != nil {
				return fmt.Errorf("reap: mark_failed(failed:attempt) for %s: %w", d.auid, err)
			}
			logger.Warn(d.auid, "killed: 2nd attempt failed")
		}
	}
	logger.Info("task", fmt.Sprintf("processing: local=%d, total=%d", nActual, nReported))
	return nil
}

// classifyInFlight is the pure decision function for one in-flight
// row: no DB or process write, only file stat + arithmetic, so it is
// safe to run concurrently across rows.
func (s *Scheduler) classifyInFlight(row models.Job, procMap map[string]int) reapDecision {
	audioPath := layout.AudioPath(s.cfg.DataRoot, row.Loaded, row.AUID, row.Lang, row.Model)
	info, err := os.Stat(audioPath)
	if err != nil {
		// File not yet present: awaiting arrival, leave untouched.
		return reapDecision{auid: row.AUID, action: "none"}
	}

	est, err := budget.Seconds(info.Size(), s.cfg.NThread, row.Model)
	if err != nil {
		return reapDecision{auid: row.AUID, action: "none"}
	}
	ttl := budget.Deadline(est, s.cfg.TTLCoef)

	if row.Processing == nil {
		return reapDecision{auid: row.AUID, action: "none"}
	}
	elapsed := s.now().Sub(*row.Processing).Seconds()
	if elapsed <= ttl {
		return reapDecision{auid: row.AUID, action: "none"}
	}

	if pid, ok := procMap[audioPath]; ok {
		return reapDecision{auid: row.AUID, audioPath: audioPath, action: "kill", pid: pid}
	}
	if row.Attempt == 1 {
		return reapDecision{auid: row.AUID, action: "resume"}
	}
	return reapDecision{auid: row.AUID, action: "fail_attempt"}
}

// admit implements R3: fetch pending, drop rows whose audio is not
// yet on disk (or below wav_min_size), and take the first freeSlots
// in FIFO order.
func (s *Scheduler) admit(ctx context.Context, freeSlots int) ([]models.Job, error) {
	pending, err := s.store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("admit: list pending jobs: %w", err)
	}

	var ready []models.Job
	for _, row := range pending {
		audioPath := layout.AudioPath(s.cfg.DataRoot, row.Loaded, row.AUID, row.Lang, row.Model)
		info, err := os.Stat(audioPath)
		if err != nil {
			continue
		}
		if info.Size() < s.cfg.WavMinSize {
			continue
		}
		ready = append(ready, row)
	}
	logger.Info("task", fmt.Sprintf("loaded: local=%d, total=%d", len(ready), len(pending)))

	if len(ready) > freeSlots {
		ready = ready[:freeSlots]
	}
	return ready, nil
}

// dispatchedJob pairs a launched handle with the row it serves, so R5
// can report success/failure against the right auid.
type dispatchedJob struct {
	job    models.Job
	handle *supervisor.Handle
}

// dispatch implements R4: mark each admitted job processing, then
// launch the engine against it.
func (s *Scheduler) dispatch(ctx context.Context, admitted []models.Job) ([]dispatchedJob, error) {
	var out []dispatchedJob
	for _, row := range admitted {
		now := s.now()
		if err := s.store.MarkProcessing(ctx, row.AUID, &now); err != nil {
			return nil, fmt.Errorf("dispatch: mark_processing for %s: %w", row.AUID, err)
		}
		logger.Info(row.AUID, "processing")

		audioPath := layout.AudioPath(s.cfg.DataRoot, row.Loaded, row.AUID, row.Lang, row.Model)
		logPath := layout.LogPath(s.cfg.DataRoot, row.Loaded, row.AUID, row.Lang, row.Model)
		modelPath := filepath.Join(s.cfg.ModelDir, string(row.Model)+".bin")
		argv := supervisor.BuildArgv(s.cfg.Whisper, s.cfg.NProc, s.cfg.NThread, s.cfg.OutputJSONFull, string(row.Lang), audioPath, modelPath)

		handle, err := supervisor.Launch(argv, logPath, audioPath)
		if err != nil {
			logger.Error(row.AUID, "failed to launch engine", err)
			if ferr := s.store.MarkFailed(ctx, row.AUID, "error:whisper"); ferr != nil {
				return nil, fmt.Errorf("dispatch: mark_failed after launch error for %s: %w", row.AUID, ferr)
			}
			continue
		}
		out = append(out, dispatchedJob{job: row, handle: handle})
	}
	return out, nil
}

// wait implements R5: poll every tracked handle every SleepSec until
// all have terminated, resolving each to mark_success or mark_failed.
func (s *Scheduler) wait(ctx context.Context, handles []dispatchedJob) {
	sleep := time.Duration(s.cfg.SleepSec) * time.Second
	if sleep <= 0 {
		sleep = 5 * time.Second
	}

	remaining := handles
	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		var still []dispatchedJob
		for _, dj := range remaining {
			running, exitCode, err := dj.handle.Poll()
			if running {
				still = append(still, dj)
				continue
			}
			s.resolve(ctx, dj.job, exitCode, err)
		}
		remaining = still
	}
}

// resolve records the terminal outcome of one finished handle.
func (s *Scheduler) resolve(ctx context.Context, job models.Job, exitCode int, waitErr error) {
	auid := job.AUID
	resultPath := layout.ResultPath(s.cfg.DataRoot, job.Loaded, auid, job.Lang, job.Model)
	logPath := layout.LogPath(s.cfg.DataRoot, job.Loaded, auid, job.Lang, job.Model)

	if waitErr == nil && exitCode == 0 {
		raw, err := os.ReadFile(resultPath)
		if err != nil {
			logger.Error(auid, "engine exited clean but result file missing", err)
			if ferr := s.store.MarkFailed(ctx, auid, "error:whisper"); ferr != nil {
				logger.Error(auid, "mark_failed after missing result failed", ferr)
			}
			return
		}
		var doc transcriptDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Error(auid, "engine result file unparseable", err)
			if ferr := s.store.MarkFailed(ctx, auid, "error:whisper"); ferr != nil {
				logger.Error(auid, "mark_failed after unparseable result failed", ferr)
			}
			return
		}
		if err := s.store.MarkSuccess(ctx, auid, doc.Transcription); err != nil {
			logger.Error(auid, "mark_success failed", err)
			return
		}
		logger.Info(auid, "success")
		return
	}

	diag := readLogPrefix(logPath, 4096)
	logger.Error(auid, "engine error", fmt.Sprintf("exit=%d waitErr=%v log=%q", exitCode, waitErr, diag))
	if err := s.store.MarkFailed(ctx, auid, "error:whisper"); err != nil {
		logger.Error(auid, "mark_failed(error:whisper) failed", err)
	}
}

func readLogPrefix(path string, max int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, max)
	n, _ := f.Read(buf)
	return string(buf[:n])
}

// execBase returns the last path element of a configured executable,
// since `ps -C` matches on the bare command name.
func execBase(path string) string {
	return filepath.Base(path)
}
