package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusPriority(t *testing.T) {
	now := time.Now()

	loaded := Job{}
	assert.Equal(t, StatusLoaded, loaded.Status())

	processing := Job{Processing: &now}
	assert.Equal(t, StatusProcessing, processing.Status())

	failed := Job{Processing: &now, Failed: &now}
	assert.Equal(t, StatusFailed, failed.Status())

	success := Job{Processing: &now, Failed: &now, Success: &now}
	assert.Equal(t, StatusSuccess, success.Status(), "success must win even if failed is also set")
}

func TestInFlight(t *testing.T) {
	now := time.Now()

	assert.False(t, (&Job{}).InFlight(), "loaded job is not in flight")
	assert.True(t, (&Job{Processing: &now}).InFlight())
	assert.False(t, (&Job{Processing: &now, Success: &now}).InFlight())
	assert.False(t, (&Job{Processing: &now, Failed: &now}).InFlight())
}

func TestKnownLangsAndModels(t *testing.T) {
	assert.True(t, KnownLangs[LangEN])
	assert.True(t, KnownLangs[LangRU])
	assert.False(t, KnownLangs[Lang("fr")])

	assert.True(t, KnownModels[ModelLev0])
	assert.True(t, KnownModels[ModelLev4])
	assert.False(t, KnownModels[Model("lev9")])
}
