// Package logging sets up the default slog logger: JSON into a rotating log file, or
// colored text on the console.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	ProgName  string
	Directory string
	Level     string
	Format    string // json (rotating log file) or console
}

/*
Setup creates the logger and installs it as default logger. The returned closer releases
the log file.
*/
func Setup(options Options) (*slog.Logger, io.Closer) {
	logLevel := new(slog.LevelVar)
	logLevel.Set(ParseLogLevel(options.Level))

	if strings.EqualFold(options.Format, "console") {
		logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})).With(slog.String("prog", options.ProgName))
		slog.SetDefault(logger)
		return logger, nopCloser{}
	}

	// log file output and rotate (with lumberjack package)
	lumberjackLogger := &lumberjack.Logger{
		Filename: filepath.Join(options.Directory, options.ProgName+".log"),
		MaxSize:  128,  // megabytes
		MaxAge:   28,   // days
		Compress: true, // gzip rotated log
	}

	logger := NewJSONLogger(lumberjackLogger, logLevel, options.ProgName)
	slog.SetDefault(logger)
	return logger, lumberjackLogger
}

/*
NewJSONLogger creates a JSON logger with source location (file base name only) and
RFC3339Nano timestamps.
*/
func NewJSONLogger(writer io.Writer, level slog.Leveler, progName string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: replacer,
	}).WithAttrs([]slog.Attr{slog.String("prog", progName)}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// replacer for logging objects
func replacer(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File) // basepath only
		}
	}
	if a.Key == slog.TimeKey {
		return slog.String("time", a.Value.Time().Format(time.RFC3339Nano)) // local time -> RFC3339Nano
	}
	return a
}

/*
ParseLogLevel parses log level setting from configuration.
*/
func ParseLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
