package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"database": "asr", "user": "asr", "password": "x", "host": "localhost",
		"table": "jobs", "sample_dir": "./samples", "model_dir": "./models",
		"whisper": "whisper-cli", "n_thread": 1,
		"data_root": "`+t.TempDir()+`"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 1, cfg.NProc)
	assert.Equal(t, 2, cfg.MaxCPU)
	assert.InDelta(t, 2.0, cfg.TTLCoef, 1e-9)
	assert.Equal(t, int64(1024), cfg.WavMinSize)
}

func TestLoadRejectsBadNThread(t *testing.T) {
	path := writeConfig(t, `{
		"database": "asr", "user": "asr", "password": "x", "host": "localhost",
		"table": "jobs", "sample_dir": "./samples", "model_dir": "./models",
		"whisper": "whisper-cli", "n_thread": 3,
		"data_root": "`+t.TempDir()+`"
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
