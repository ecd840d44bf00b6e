// Package logger wraps log/slog with the line shape spec.md §7
// mandates: "YYMMDD:HHMMSS LEVEL (vid) msg", where vid is either an
// auid or a subsystem tag (db, task, http). It follows the teacher's
// pattern of a package-level default logger with small convenience
// wrappers, rather than threading a *Logger through every call site.
// Line is itself a thin slog call: a lineHandler renders slog.Record
// into the fixed shape, so Init's handler setup and level filtering
// are the single source of truth Line, Get and WithContext all share.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger so callers can attach persistent fields with
// WithContext without losing the package-level convenience functions.
type Logger struct {
	*slog.Logger
}

// Level mirrors the three codes the original implementation used
// (i/w/e) plus debug for local development.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	defaultLogger *Logger
	currentLevel  = LevelInfo
)

// vidKey is the slog attribute key Line and WithContext use to carry
// the "(vid)" token through to lineHandler.
const vidKey = "vid"

// lineHandler renders a slog.Record as spec.md §7's fixed line shape
// instead of slog's usual key=value text output. Attrs other than vid
// are appended space-separated after msg, matching Line's previous
// fmt.Printf-based formatting.
type lineHandler struct {
	mu    sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func newLineHandler(w io.Writer, level slog.Level) *lineHandler {
	return &lineHandler{w: w, level: level}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	vid := "-"
	var extra []string
	collect := func(a slog.Attr) bool {
		if a.Key == vidKey {
			vid = a.Value.String()
			return true
		}
		extra = append(extra, fmt.Sprintf("%v", a.Value.Any()))
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool { return collect(a) })

	ts := r.Time.Format("060102:150405")
	code := levelCode(r.Level)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(extra) > 0 {
		_, err := fmt.Fprintf(h.w, "%s %s (%s) %s %s\n", ts, code, vid, r.Message, strings.Join(extra, " "))
		return err
	}
	_, err := fmt.Fprintf(h.w, "%s %s (%s) %s\n", ts, code, vid, r.Message)
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lineHandler{w: h.w, level: h.level, attrs: merged}
}

func (h *lineHandler) WithGroup(_ string) slog.Handler {
	return h
}

func levelCode(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Init initializes the global logger with the given level name
// ("debug", "info", "warn", "error"; default "info").
func Init(level string) {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "warn", "warning":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}

	var slogLevel slog.Level
	switch currentLevel {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := newLineHandler(os.Stdout, slogLevel)
	defaultLogger = &Logger{slog.New(handler)}
}

// Get returns the default logger, initializing it from LOG_LEVEL if
// this is the first call.
func Get() *Logger {
	if defaultLogger == nil {
		Init(os.Getenv("LOG_LEVEL"))
	}
	return defaultLogger
}

func slogLevelFor(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Line emits one line in the exact shape spec.md §7 names:
// "YYMMDD:HHMMSS LEVEL (vid) msg". vid is an auid or a subsystem tag.
// It runs through the same slog pipeline Get and WithContext use, so
// level filtering and rendering have one implementation.
func Line(level Level, vid, msg string, args ...any) {
	Get().Log(context.Background(), slogLevelFor(level), msg, append([]any{vidKey, vid}, args...)...)
}

func Debug(vid, msg string, args ...any) { Line(LevelDebug, vid, msg, args...) }
func Info(vid, msg string, args ...any)  { Line(LevelInfo, vid, msg, args...) }
func Warn(vid, msg string, args ...any)  { Line(LevelWarn, vid, msg, args...) }
func Error(vid, msg string, args ...any) { Line(LevelError, vid, msg, args...) }

// WithContext returns a logger carrying an extra persistent field,
// rendered by lineHandler as a trailing token alongside msg.
func WithContext(key string, value any) *Logger {
	return &Logger{Get().With(key, value)}
}

// GinLogger is request-logging middleware emitting one Line per
// request tagged with the subsystem "http".
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		dur := time.Since(start)
		Info("http", fmt.Sprintf("%s %s %d %.2fms", c.Request.Method, path, c.Writer.Status(), float64(dur.Microseconds())/1000))
	}
}

// SetGinOutput suppresses gin's own logger; request logging goes
// through GinLogger instead.
func SetGinOutput() {
	gin.DefaultWriter = io.Discard
}
