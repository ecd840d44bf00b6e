package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ikretus/asr/internal/models"
)

// Fake is an in-memory Store used by tests that exercise the
// scheduler/ingress/query logic without a live Postgres. It
// implements the same atomicity guarantees the real store gives:
// every mutation is a single, lock-guarded step.
type Fake struct {
	mu   sync.Mutex
	rows map[string]*models.Job
}

// NewFake returns an empty in-memory Store.
func NewFake() *Fake {
	return &Fake{rows: make(map[string]*models.Job)}
}

// Seed installs a row directly, for tests that need to start from a
// specific state (e.g. a stuck in-flight job).
func (f *Fake) Seed(j models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := j
	f.rows[j.AUID] = &cp
}

func (f *Fake) Create(_ context.Context, auid string, lang models.Lang, model models.Model) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rows[auid]; exists {
		return fmt.Errorf("auid %s already exists", auid)
	}
	f.rows[auid] = &models.Job{AUID: auid, Lang: lang, Model: model, Loaded: time.Now()}
	return nil
}

func (f *Fake) MarkProcessing(_ context.Context, auid string, ts *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[auid]
	if !ok {
		return fmt.Errorf("auid %s not found", auid)
	}
	j.Processing = ts
	j.Attempt++
	return nil
}

func (f *Fake) MarkSuccess(_ context.Context, auid string, transcript json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[auid]
	if !ok {
		return fmt.Errorf("auid %s not found", auid)
	}
	now := time.Now()
	j.Success = &now
	success := "success"
	j.Log = &success
	j.Result = append([]byte(nil), transcript...)
	return nil
}

func (f *Fake) MarkFailed(_ context.Context, auid string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[auid]
	if !ok {
		return fmt.Errorf("auid %s not found", auid)
	}
	now := time.Now()
	j.Failed = &now
	j.Log = &reason
	return nil
}

func (f *Fake) SetTarget(_ context.Context, auid string, target json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[auid]
	if !ok {
		return fmt.Errorf("auid %s not found", auid)
	}
	j.Target = append([]byte(nil), target...)
	return nil
}

func (f *Fake) Pending(_ context.Context) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, j := range f.rows {
		if j.Processing == nil {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Loaded.Before(out[k].Loaded) })
	return out, nil
}

func (f *Fake) InFlight(_ context.Context) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, j := range f.rows {
		if j.InFlight() {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *Fake) Get(_ context.Context, auid string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[auid]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *Fake) Recent(_ context.Context, limit int) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, j := range f.rows {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Loaded.After(out[k].Loaded) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*Fake)(nil)
