package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgvShape(t *testing.T) {
	argv := BuildArgv("whisper-cli", 1, 2, false, "en", "/data/260730/a_en_lev2.wav", "/models/lev2.bin")
	assert.Equal(t, []string{
		"whisper-cli",
		"-p", "1",
		"-t", "2",
		"-ng", "-oj",
		"-l", "en",
		"-f", "/data/260730/a_en_lev2.wav",
		"-m", "/models/lev2.bin",
		"-of", "/data/260730/a_en_lev2",
	}, argv)
}

func TestBuildArgvOutputJSONFull(t *testing.T) {
	argv := BuildArgv("whisper-cli", 1, 1, true, "ru", "/x/a.wav", "/m/lev0.bin")
	assert.Contains(t, argv, "-ojf")
	assert.NotContains(t, argv, "-oj")
}

func TestFindDashF(t *testing.T) {
	assert.Equal(t, "/data/x.wav", findDashF([]string{"-p", "1", "-f", "/data/x.wav", "-m", "/m.bin"}))
	assert.Equal(t, "", findDashF([]string{"-p", "1"}))
	assert.Equal(t, "", findDashF([]string{"-f"}))
}

func TestEnumerateParsesPsOutput(t *testing.T) {
	orig := enumerateExec
	defer func() { enumerateExec = orig }()

	line := "1234 whisper-cli -p 1 -t 2 -ng -oj -l en -f /data/260730/a_en_lev2.wav -m /m/lev2.bin -of /data/260730/a_en_lev2 extra pad"
	enumerateExec = func(execName string) ([]byte, error) {
		return []byte(line + "\n"), nil
	}

	procs, err := Enumerate("whisper-cli")
	require.NoError(t, err)
	assert.Equal(t, 1234, procs["/data/260730/a_en_lev2.wav"])
}

func TestEnumerateSkipsShortLines(t *testing.T) {
	orig := enumerateExec
	defer func() { enumerateExec = orig }()
	enumerateExec = func(execName string) ([]byte, error) {
		return []byte("1234 whisper-cli -f /x.wav\n"), nil
	}

	procs, err := Enumerate("whisper-cli")
	require.NoError(t, err)
	assert.Empty(t, procs)
}

func TestLaunchAndPoll(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("/bin/true not available on this system")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "job.log")

	h, err := Launch([]string{"/bin/true"}, logPath, filepath.Join(dir, "job.wav"))
	require.NoError(t, err)

	var running bool
	var exitCode int
	for i := 0; i < 50; i++ {
		running, exitCode, err = h.Poll()
		if !running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, running, "process should have exited")
	assert.NoError(t, err)
	assert.Equal(t, 0, exitCode)
}

func TestLaunchNonZeroExit(t *testing.T) {
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip("/bin/false not available on this system")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "job.log")

	h, err := Launch([]string{"/bin/false"}, logPath, filepath.Join(dir, "job.wav"))
	require.NoError(t, err)

	var running bool
	var exitCode int
	for i := 0; i < 50; i++ {
		running, exitCode, _ = h.Poll()
		if !running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, running)
	assert.Equal(t, 1, exitCode)
}
