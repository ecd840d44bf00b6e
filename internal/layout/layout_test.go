package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikretus/asr/internal/models"
)

func TestPathShape(t *testing.T) {
	loaded := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	got := AudioPath("/data", loaded, "abc-123", models.LangEN, models.ModelLev2)
	assert.Equal(t, "/data/260730/abc-123_en_lev2.wav", got)

	assert.Equal(t, "/data/260730/abc-123_en_lev2.json", ResultPath("/data", loaded, "abc-123", models.LangEN, models.ModelLev2))
	assert.Equal(t, "/data/260730/abc-123_en_lev2.log", LogPath("/data", loaded, "abc-123", models.LangEN, models.ModelLev2))
}

func TestSibling(t *testing.T) {
	audio := "/data/260730/abc-123_en_lev2.wav"
	assert.Equal(t, "/data/260730/abc-123_en_lev2.json", Sibling(audio, ExtJSON))
	assert.Equal(t, "/data/260730/abc-123_en_lev2.log", Sibling(audio, ExtLog))
}

func TestParseIsInverseOfPath(t *testing.T) {
	loaded := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	path := AudioPath("/data", loaded, "abc-123", models.LangRU, models.ModelLev4)

	id, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id.AUID)
	assert.Equal(t, models.LangRU, id.Lang)
	assert.Equal(t, models.ModelLev4, id.Model)
	assert.True(t, id.Loaded.Equal(loaded))
}

func TestParseRejectsMalformedPaths(t *testing.T) {
	_, err := Parse("/data/notadate/abc_en_lev2.wav")
	assert.Error(t, err)

	_, err = Parse("/data/260730/too_many_underscore_tokens.wav")
	assert.Error(t, err)

	_, err = Parse("/data/260730/onlyoneunderscore_abc.wav")
	assert.Error(t, err)
}
