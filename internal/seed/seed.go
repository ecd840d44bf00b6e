// Package seed implements the dev-loop seeder (C8, spec.md §4.8): it
// manufactures N LOADED jobs pointing at a copy of the configured
// sample recording, so a scheduler pass has real work to pick up
// without running the HTTP ingress. It is grounded on the Open
// Question decision in SPEC_FULL.md to copy the sample file with
// io.Copy rather than shelling out to `cp`, matching the
// argv-vector-only REDESIGN FLAG's spirit even where no subprocess is
// involved at all.
package seed

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/layout"
	"github.com/ikretus/asr/internal/models"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/pkg/logger"
)

var langs = []models.Lang{models.LangEN, models.LangRU}
var tiers = []models.Model{models.ModelLev0, models.ModelLev1, models.ModelLev2, models.ModelLev3, models.ModelLev4}

// Seed creates n jobs with random lang/model against a fresh copy of
// cfg.SampleDir's sample recording, all dated today.
func Seed(ctx context.Context, st store.Store, cfg *config.Config, n int) error {
	samplePath, err := findSample(cfg.SampleDir)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	for i := 0; i < n; i++ {
		auid := uuid.NewString()
		lang := langs[rand.Intn(len(langs))]
		model := tiers[rand.Intn(len(tiers))]

		if err := st.Create(ctx, auid, lang, model); err != nil {
			return fmt.Errorf("seed: create job %s: %w", auid, err)
		}

		dst := layout.AudioPath(cfg.DataRoot, time.Now(), auid, lang, model)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("seed: create day dir for %s: %w", auid, err)
		}
		if err := copyFile(samplePath, dst); err != nil {
			return fmt.Errorf("seed: copy sample for %s: %w", auid, err)
		}
		logger.Info(auid, fmt.Sprintf("seeded lang=%s model=%s", lang, model))
	}
	return nil
}

// findSample returns the first regular file in dir, the fixed sample
// recording seeded jobs all share.
func findSample(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read sample_dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no sample file found in %s", dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
