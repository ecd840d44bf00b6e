// Package budget implements the pure size-derived time-budget estimate
// (C3, spec.md §4.3). It has no side effects and no dependency on the
// store or filesystem, matching the original implementation's
// coefficient table exactly (asr/conf.py's WHISPER["model"]).
package budget

import (
	"fmt"

	"github.com/ikretus/asr/internal/models"
)

// bytesPerSecond is the canonical 16 kHz, 16-bit, mono audio rate.
const bytesPerSecond = 32000.0

// coeff[n_thread][tier] is the fixed table spec.md §4.3 requires:
// values are monotonically increasing in tier, indexed by the
// configured thread count (1 or 2).
var coeff = map[int]map[models.Model]float64{
	1: {
		models.ModelLev0: 0.15,
		models.ModelLev1: 0.19,
		models.ModelLev2: 0.92,
		models.ModelLev3: 2.1,
		models.ModelLev4: 3.9,
	},
	2: {
		models.ModelLev0: 0.18,
		models.ModelLev1: 0.25,
		models.ModelLev2: 0.59,
		models.ModelLev3: 1.4,
		models.ModelLev4: 2.5,
	},
}

// Seconds computes budget_seconds(file_bytes, model) =
// file_bytes * COEFF[n_thread][model] / 32000.
func Seconds(fileBytes int64, nThread int, tier models.Model) (float64, error) {
	byTier, ok := coeff[nThread]
	if !ok {
		return 0, fmt.Errorf("budget: unsupported thread count %d", nThread)
	}
	c, ok := byTier[tier]
	if !ok {
		return 0, fmt.Errorf("budget: unknown model tier %q", tier)
	}
	return float64(fileBytes) * c / bytesPerSecond, nil
}

// Deadline multiplies the estimate by ttlCoef (default 2, spec.md
// §4.3) to obtain the wall-clock deadline the reaper enforces.
func Deadline(budgetSeconds, ttlCoef float64) float64 {
	return ttlCoef * budgetSeconds
}
