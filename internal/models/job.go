// Package models defines the Job entity and its lifecycle classification.
package models

import "time"

// Lang is one of the known sample languages a job's audio may be in.
type Lang string

const (
	LangEN Lang = "en"
	LangRU Lang = "ru"
)

// KnownLangs lists the languages the ingress handler accepts.
var KnownLangs = map[Lang]bool{
	LangEN: true,
	LangRU: true,
}

// Model is a quality tier: higher numbers are slower and more accurate.
type Model string

const (
	ModelLev0 Model = "lev0"
	ModelLev1 Model = "lev1"
	ModelLev2 Model = "lev2"
	ModelLev3 Model = "lev3"
	ModelLev4 Model = "lev4"
)

// KnownModels lists the quality tiers the ingress handler accepts.
var KnownModels = map[Model]bool{
	ModelLev0: true,
	ModelLev1: true,
	ModelLev2: true,
	ModelLev3: true,
	ModelLev4: true,
}

// Status is the lifecycle state derived from a Job's nullable timestamps.
type Status string

const (
	StatusLoaded     Status = "loaded"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusSuccess    Status = "success"
)

// Job is the single logical entity this system tracks end to end.
// It mirrors the `CREATE TABLE` schema in spec.md §6 exactly: every
// field here is a column, and every mutation is a single atomic UPDATE
// issued by internal/store.
type Job struct {
	AUID       string     `db:"auid"`
	Lang       Lang       `db:"lang"`
	Model      Model      `db:"model"`
	Attempt    int        `db:"attempt"`
	Loaded     time.Time  `db:"loaded"`
	Processing *time.Time `db:"processing"`
	Failed     *time.Time `db:"failed"`
	Success    *time.Time `db:"success"`
	Log        *string    `db:"log"`
	Result     []byte     `db:"result"` // jsonb, raw bytes; caller decodes
	Target     []byte     `db:"target"` // jsonb, raw bytes; reserved for evaluation tooling
}

// Status classifies a Job by timestamp priority: success > failed >
// processing > loaded, per spec.md §4.7.
func (j *Job) Status() Status {
	switch {
	case j.Success != nil:
		return StatusSuccess
	case j.Failed != nil:
		return StatusFailed
	case j.Processing != nil:
		return StatusProcessing
	default:
		return StatusLoaded
	}
}

// InFlight reports whether the row is in the in-flight window: processing
// is set but neither terminal timestamp is.
func (j *Job) InFlight() bool {
	return j.Processing != nil && j.Failed == nil && j.Success == nil
}
