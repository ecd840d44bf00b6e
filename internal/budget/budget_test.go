package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikretus/asr/internal/models"
)

func TestSecondsKnownCoefficients(t *testing.T) {
	got, err := Seconds(32000, 1, models.ModelLev0)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, got, 1e-9)

	got, err = Seconds(64000, 2, models.ModelLev4)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestSecondsUnknownThreadOrModel(t *testing.T) {
	_, err := Seconds(32000, 3, models.ModelLev0)
	assert.Error(t, err)

	_, err = Seconds(32000, 1, models.Model("lev9"))
	assert.Error(t, err)
}

func TestDeadlineAppliesCoefficient(t *testing.T) {
	assert.InDelta(t, 20.0, Deadline(10.0, 2.0), 1e-9)
	assert.InDelta(t, 0.0, Deadline(0.0, 2.0), 1e-9)
}

func TestCoefficientsMonotonicInTier(t *testing.T) {
	for nThread := 1; nThread <= 2; nThread++ {
		prev := 0.0
		for _, tier := range []models.Model{models.ModelLev0, models.ModelLev1, models.ModelLev2, models.ModelLev3, models.ModelLev4} {
			c, err := Seconds(32000, nThread, tier)
			require.NoError(t, err)
			assert.Greater(t, c, prev, "coefficients must increase with tier")
			prev = c
		}
	}
}
