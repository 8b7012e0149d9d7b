// Package logging configures the kernel's structured logger. A Jupyter
// kernel's stdout/stderr are captured by the launching client, so logging
// stays silent unless explicitly enabled.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"swiftkernel/kpaths"
)

// Logger is the public logger instance accessible from all packages.
var Logger *slog.Logger

func init() {
	Logger = slog.New(cellHandler{slog.NewJSONHandler(io.Discard, nil)})
}

// Initialize sets up the logger based on the debug flag and configuration.
// Every kernel process resolves its own paths (settings, the audit
// database, install artifacts) under kpaths.Home(); logs follow the same
// convention rather than each OS's native log directory, since a kernel is
// launched by a controlling Jupyter client under one fixed environment
// rather than run interactively per-OS.
func Initialize(debug bool, debugFile string, maxLogFiles int) error {
	if os.Getenv("SWIFTKERNEL_DEBUG") == "1" {
		debug = true
	}
	if envDebugFile := os.Getenv("SWIFTKERNEL_DEBUG_FILE"); envDebugFile != "" && debugFile == "" {
		debugFile = envDebugFile
	}
	if envMaxLogFiles := os.Getenv("SWIFTKERNEL_MAX_LOG_FILES"); envMaxLogFiles != "" && maxLogFiles == 1000 {
		if parsed, err := strconv.Atoi(envMaxLogFiles); err == nil {
			maxLogFiles = parsed
		}
	}

	if !debug && debugFile == "" {
		Logger = slog.New(cellHandler{slog.NewJSONHandler(io.Discard, nil)})
		return nil
	}

	logFilePath := debugFile
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	} else {
		logDir := filepath.Join(kpaths.Home(), "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		if maxLogFiles > 0 {
			if err := rotateLogs(logDir, maxLogFiles); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
			}
		}
		logFilePath = filepath.Join(logDir, fmt.Sprintf("%s.log", uuid.New().String()))
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	Logger = slog.New(cellHandler{slog.NewJSONHandler(logFile, opts)})

	wasExplicit := os.Getenv("SWIFTKERNEL_DEBUG") == ""
	if wasExplicit {
		Logger.Info("debug logging initialized", "log_file", logFilePath)
	}

	return nil
}

// cellCtxKey is the context key WithCell attaches an execution counter to.
type cellCtxKey struct{}

// WithCell returns a context carrying the current execution counter, so log
// records emitted while handling that cell can be correlated with it.
func WithCell(ctx context.Context, executionCount int) context.Context {
	return context.WithValue(ctx, cellCtxKey{}, executionCount)
}

// FromContext returns a logger enriched with the execution counter stored in
// ctx by WithCell, or Logger unchanged if none was attached. This mirrors
// cellHandler's own attribute injection for call sites that build a derived
// *slog.Logger directly instead of going through Logger.InfoContext et al.
func FromContext(ctx context.Context) *slog.Logger {
	if n, ok := ctx.Value(cellCtxKey{}).(int); ok {
		return Logger.With("execution_count", n)
	}
	return Logger
}

// cellHandler wraps a slog.Handler, attaching the execution_count attribute
// from a WithCell context automatically on every record handled through a
// *Context logging call (InfoContext, WarnContext, ...), so cell-scoped log
// lines carry the correlation attribute without every call site threading
// it through explicitly.
type cellHandler struct {
	slog.Handler
}

func (h cellHandler) Handle(ctx context.Context, record slog.Record) error {
	if n, ok := ctx.Value(cellCtxKey{}).(int); ok {
		record.AddAttrs(slog.Int("execution_count", n))
	}
	return h.Handler.Handle(ctx, record)
}

func (h cellHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return cellHandler{h.Handler.WithAttrs(attrs)}
}

func (h cellHandler) WithGroup(name string) slog.Handler {
	return cellHandler{h.Handler.WithGroup(name)}
}

func rotateLogs(logDir string, maxLogFiles int) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	type logFileInfo struct {
		path    string
		modTime time.Time
	}
	var logFiles []logFileInfo

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		fullPath := filepath.Join(logDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logFiles = append(logFiles, logFileInfo{path: fullPath, modTime: info.ModTime()})
	}

	if len(logFiles) < maxLogFiles {
		return nil
	}

	sort.Slice(logFiles, func(i, j int) bool {
		return logFiles[i].modTime.Before(logFiles[j].modTime)
	})

	numToDelete := len(logFiles) - maxLogFiles + 1
	for i := 0; i < numToDelete && i < len(logFiles); i++ {
		if err := os.Remove(logFiles[i].path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to delete old log file %s: %v\n", logFiles[i].path, err)
		}
	}

	return nil
}
