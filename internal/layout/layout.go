// Package layout implements the deterministic mapping between a job's
// identity and its on-disk artifact paths (C2, spec.md §4.2). The
// layout is parseable: given any artifact path, Parse recovers the
// auid, lang, model and loaded-date by tokenizing the basename on "_"
// and the directory on the path separator. The OS process table shows
// the audio path as the engine's file argument; internal/supervisor
// keys its process map by that path as-is, and the scheduler matches
// it against AudioPath rather than calling Parse.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ikretus/asr/internal/models"
)

const dateLayout = "060102"

// Ext enumerates the three artifact kinds a job produces.
type Ext string

const (
	ExtWav  Ext = "wav"
	ExtJSON Ext = "json"
	ExtLog  Ext = "log"
)

// DayDir returns DATA_ROOT/YYMMDD for the given loaded timestamp.
func DayDir(root string, loaded time.Time) string {
	return filepath.Join(root, loaded.Format(dateLayout))
}

// stem returns "<auid>_<lang>_<model>" with no extension.
func stem(auid string, lang models.Lang, model models.Model) string {
	return fmt.Sprintf("%s_%s_%s", auid, lang, model)
}

// Path returns the canonical path for one artifact of a job.
func Path(root string, loaded time.Time, auid string, lang models.Lang, model models.Model, ext Ext) string {
	return filepath.Join(DayDir(root, loaded), stem(auid, lang, model)+"."+string(ext))
}

// AudioPath, ResultPath and LogPath are Path specialized to each
// artifact kind, for call sites that only ever need one.
func AudioPath(root string, loaded time.Time, auid string, lang models.Lang, model models.Model) string {
	return Path(root, loaded, auid, lang, model, ExtWav)
}

func ResultPath(root string, loaded time.Time, auid string, lang models.Lang, model models.Model) string {
	return Path(root, loaded, auid, lang, model, ExtJSON)
}

func LogPath(root string, loaded time.Time, auid string, lang models.Lang, model models.Model) string {
	return Path(root, loaded, auid, lang, model, ExtLog)
}

// Sibling swaps the extension of an already-computed artifact path,
// e.g. turning a .wav path into its .json or .log sibling without
// recomputing identity.
func Sibling(audioPath string, ext Ext) string {
	trimmed := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	return trimmed + "." + string(ext)
}

// Identity is everything Parse recovers from an artifact path.
type Identity struct {
	AUID   string
	Lang   models.Lang
	Model  models.Model
	Loaded time.Time
}

// Parse recovers a job's identity from one of its artifact paths. It
// is the inverse of Path; no other package in this repository calls it.
func Parse(path string) (Identity, error) {
	dir, base := filepath.Split(path)
	dateToken := filepath.Base(filepath.Clean(dir))
	loaded, err := time.Parse(dateLayout, dateToken)
	if err != nil {
		return Identity{}, fmt.Errorf("parse date from %q: %w", path, err)
	}

	name := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("parse stem from %q: want 3 underscore-separated tokens, got %d", base, len(parts))
	}

	return Identity{
		AUID:   parts[0],
		Lang:   models.Lang(parts[1]),
		Model:  models.Model(parts[2]),
		Loaded: loaded,
	}, nil
}
