// Package transcode invokes the external media transcoder (ffmpeg) to
// produce the canonical 16 kHz, mono, signed 16-bit PCM WAV spec.md
// §4.6 requires. It is grounded on Skryldev-audio-lab's ffmpeg
// Executor (argv-vector invocation, captured stderr) adapted to the
// single fixed conversion C6 needs, per the REDESIGN FLAG that both
// external tools must be invoked via argv vectors, never a shell.
package transcode

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/ikretus/asr/internal/asrerr"
)

// Transcoder runs ffmpeg against a fixed output profile.
type Transcoder struct {
	ffmpegPath string
}

// New returns a Transcoder using the given ffmpeg binary path (or
// "ffmpeg" to resolve it from PATH at exec time).
func New(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{ffmpegPath: ffmpegPath}
}

// ToCanonicalWAV converts src into dst as 16 kHz, mono, signed 16-bit
// PCM. On non-zero exit it returns a *asrerr.TranscodeError carrying
// ffmpeg's stderr, for the 415 response spec.md §4.6/§6 requires.
func (t *Transcoder) ToCanonicalWAV(ctx context.Context, src, dst string) error {
	args := []string{
		"-hide_banner", "-v", "error", "-y",
		"-i", src,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		dst,
	}
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return asrerr.NewTranscodeError("ffmpeg transcode failed", stderr.String(), err)
	}
	return nil
}
