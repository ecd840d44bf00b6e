// Package supervisor implements the Process Supervisor (C4, spec.md
// §4.4): it launches the external engine, enumerates running engine
// processes by inspecting the OS process table, kills stuck ones, and
// polls handles for completion. It is grounded on the teacher's
// internal/queue package (RunningJob tracking, killProcessTree) and
// internal/asrengine/manager.go's exec.Command launch style, adapted
// from a persistent gRPC-backed daemon to a one-shot subprocess per
// job, since spec.md §4.4 runs exactly one engine instance per job.
package supervisor

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ikretus/asr/pkg/logger"
)

// Handle is an opaque reference to a launched engine process plus the
// audio path used as its input, exactly as spec.md §4.4 describes.
// cmd.Wait is invoked exactly once, from a goroutine started at
// Launch time, since the standard library forbids calling it
// concurrently or more than once; Poll only ever reads the result.
type Handle struct {
	AudioPath string

	mu       sync.Mutex
	done     bool
	exitCode int
	waitErr  error
	doneCh   chan struct{}

	cmd     *exec.Cmd
	logFile *os.File
}

// Launch starts the engine with stdout and stderr both redirected to
// the job's .log file, per spec.md §4.4. argv must already be the
// full positional vector (spec.md §6); no shell is ever invoked.
func Launch(argv []string, logPath string, audioPath string) (*Handle, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file %s: %w", logPath, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	h := &Handle{
		AudioPath: audioPath,
		cmd:       cmd,
		logFile:   logFile,
		doneCh:    make(chan struct{}),
	}

	go func() {
		werr := cmd.Wait()
		h.logFile.Close()
		h.mu.Lock()
		h.done = true
		h.waitErr = werr
		if werr == nil {
			h.exitCode = 0
		} else if exitErr, ok := werr.(*exec.ExitError); ok {
			h.exitCode = exitErr.ExitCode()
		} else {
			h.exitCode = -1
		}
		h.mu.Unlock()
		close(h.doneCh)
	}()

	return h, nil
}

// Pid returns the OS process id of the launched engine, or 0 if the
// handle was never successfully started.
func (h *Handle) Pid() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Poll is a non-blocking check of whether the handle is still
// running. running is true while the process has not yet exited;
// once false, exitCode and err give the final status (spec.md §4.4).
func (h *Handle) Poll() (running bool, exitCode int, err error) {
	select {
	case <-h.doneCh:
		h.mu.Lock()
		defer h.mu.Unlock()
		return false, h.exitCode, h.waitErr
	default:
		return true, 0, nil
	}
}

// enumerateExec is the only process-table call this package makes
// (isolated here so proc-table-less test environments can override
// it). It shells out to the Linux procps `ps` the same way the
// original implementation did, per spec.md §4.4: "Enumerate: ask the
// OS for all currently running engine processes of the configured
// executable name".
var enumerateExec = func(execName string) ([]byte, error) {
	return exec.Command("ps", "--no-header", "-C", execName, "-o", "pid,cmd").Output()
}

// Enumerate returns a mapping audio_path -> pid for every currently
// running instance of execName, by parsing `ps --no-header -C <exec>
// -o pid,cmd`. Entries whose command line has fewer than 16 tokens
// are ignored as startup transients or unrelated processes (spec.md
// §4.4); audio_path is recovered from the "-f <path>" argument.
func Enumerate(execName string) (map[string]int, error) {
	out, err := enumerateExec(execName)
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// ps exits non-zero when no matching process exists.
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("enumerate %s processes: %w", execName, err)
	}

	result := make(map[string]int)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 16 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		audioPath := findDashF(fields[1:])
		if audioPath == "" {
			continue
		}
		result[audioPath] = pid
	}
	return result, nil
}

// findDashF recovers the argument following "-f" in a tokenized
// command line, which by spec.md §6's positional schema is the audio
// path: index 10 of tokens (the pid is excluded), field 11 of the
// full ps line.
func findDashF(tokens []string) string {
	for i, tok := range tokens {
		if tok == "-f" && i+1 < len(tokens) {
			return tokens[i+1]
		}
	}
	return ""
}

// Kill sends SIGKILL to pid. A failure is logged and swallowed: the
// process may already have exited (spec.md §4.4, §7).
func Kill(auid string, pid int) {
	if err := killPid(pid); err != nil {
		logger.Warn(auid, fmt.Sprintf("kill pid %d failed, process likely already exited", pid), err)
	}
}

// BuildArgv constructs the engine command line exactly as spec.md §6
// specifies, so that audio_path lands at index 10 of the returned
// slice (field 11 of a `ps -o pid,cmd` line, after the pid):
//
//	<WHISPER_EXEC> -p <n_proc> -t <n_thread> -ng -oj -l <lang>
//	               -f <audio_path> -m <model_path> -of <audio_path minus .wav>
func BuildArgv(whisperExec string, nProc, nThread int, outputJSONFull bool, lang, audioPath, modelPath string) []string {
	ojFlag := "-oj"
	if outputJSONFull {
		ojFlag = "-ojf"
	}
	stem := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	return []string{
		whisperExec,
		"-p", strconv.Itoa(nProc),
		"-t", strconv.Itoa(nThread),
		"-ng", ojFlag,
		"-l", lang,
		"-f", audioPath,
		"-m", modelPath,
		"-of", stem,
	}
}
