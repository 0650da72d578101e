package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config selects the level and an optional directory for a per-run log file.
type Config struct {
	Level   string
	Dir     string    // "" disables the log file
	Console io.Writer // defaults to os.Stdout
}

// Logger wraps zap's SugaredLogger and owns the per-run log file.
type Logger struct {
	*zap.SugaredLogger
	// Path is the log file of this run, empty when file logging is off.
	Path string
	file *os.File
}

// defaultZapLevel is used when an unknown level string is provided.
const defaultZapLevel = zapcore.InfoLevel

func toZapLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

// newConsoleCore builds a core with a console encoder and no timestamps,
// so progress lines read like plain output.
func newConsoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = ""
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
}

// newFileCore writes the same entries with RFC3339 timestamps.
func newFileCore(f *os.File, level zapcore.Level) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(f), zap.NewAtomicLevelAt(level))
}

// New builds a logger writing to the console and, if cfg.Dir is set, to
// <dir>/<start time>.txt.
func New(cfg Config) (*Logger, error) {
	level := toZapLevel(cfg.Level)
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{newConsoleCore(console, level)}

	l := &Logger{}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("logger: mkdir %s: %w", cfg.Dir, err)
		}
		path := filepath.Join(cfg.Dir, time.Now().Format("2006-01-02_150405")+".txt")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", path, err)
		}
		l.file = f
		l.Path = path
		cores = append(cores, newFileCore(f, level))
	}

	l.SugaredLogger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return l, nil
}

// Close flushes pending entries and closes the log file.
func (l *Logger) Close() error {
	l.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
