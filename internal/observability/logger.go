// File: internal/observability/logger.go

// Package observability owns the process-wide zap logger. Every component
// derives its logger from here via GetLogger().Named(...), so log routing,
// rotation and formatting are decided in exactly one place.
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/probeworks/shopflow-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// globalLogger holds the process-wide logger once Initialize has run.
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const colorReset = "\x1b[0m"

// colorMap translates the config's friendly color names to ANSI codes.
var colorMap = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the global logger from configuration with the console
// stream going to the supplied writer. The first call wins; later calls are
// no-ops. Most callers want InitializeLogger instead.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		logger := build(cfg, consoleWriter)
		globalLogger.Store(logger)

		// Route the stdlib logger and zap's package globals through the
		// same cores so third-party log output lands in one place.
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// InitializeLogger is the production entry point: console output goes to a
// locked stdout.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// ResetForTest clears the singleton so the next Initialize call takes
// effect. Test-only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

func build(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		// An unknown level name falls back to info rather than failing the run.
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoderFor(cfg), consoleWriter, level)}
	if cfg.LogFile != "" {
		// The file sink is always JSON so rotated logs stay machine-parseable
		// whatever the console format is.
		fileEncoder := encoderFor(config.LoggerConfig{Format: "json"})
		cores = append(cores, zapcore.NewCore(fileEncoder, newRotatingFileSink(cfg), level))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...).Named(cfg.ServiceName)
}

// newRotatingFileSink wraps lumberjack so long watch runs cannot grow the
// log file without bound.
func newRotatingFileSink(cfg config.LoggerConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// encoderFor picks the wire format: a colorized single-line console layout
// for humans, JSON for everything else.
func encoderFor(cfg config.LoggerConfig) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if cfg.Format != "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(encCfg)
	}

	encCfg.EncodeLevel = levelColorEncoder(cfg.Colors)
	// A dot suffix keeps the component name visually distinct in the line
	// (e.g. "shopflow-cli.results_page.").
	encCfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// levelColorEncoder renders the level label in the color the config assigns
// to that severity. Levels without a configured color print plain.
func levelColorEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	palette := map[zapcore.Level]string{
		zapcore.DebugLevel:  colorMap[colors.Debug],
		zapcore.InfoLevel:   colorMap[colors.Info],
		zapcore.WarnLevel:   colorMap[colors.Warn],
		zapcore.ErrorLevel:  colorMap[colors.Error],
		zapcore.DPanicLevel: colorMap[colors.DPanic],
		zapcore.PanicLevel:  colorMap[colors.Panic],
		zapcore.FatalLevel:  colorMap[colors.Fatal],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		label := strings.ToUpper(level.String())
		if color := palette[level]; color != "" {
			enc.AppendString(color + label + colorReset)
			return
		}
		enc.AppendString(label)
	}
}

// GetLogger returns the process-wide logger. When called before Initialize
// it hands back a development logger so early failures still surface
// somewhere visible.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	fallback, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	fallback.Warn("Global logger requested before initialization; using fallback.")
	return fallback.Named("fallback")
}

// Sync flushes buffered entries. Call it once on the way out of the process.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !syncErrIsBenign(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// Syncing a terminal stdout fails on several platforms; those failures say
// nothing about lost log data.
func syncErrIsBenign(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stdout") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "operation not supported")
}
