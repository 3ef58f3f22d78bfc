// Package logger owns the process-wide zap logger.
//
// Components never reach for the global directly; they take a
// *zap.SugaredLogger in their constructor and call Named on it. The global
// exists so cmd/ can build one logger and hand it down.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global instance. It is a no-op until Initialize runs so
// packages used before startup (tests included) never dereference nil.
var Logger = zap.NewNop().Sugar()

// Initialize builds the global logger. JSON output is meant for machine
// consumption; the console encoder is for humans.
func Initialize(jsonOutput bool, level string) error {
	lvl := parseLevel(level)

	var (
		zapLogger *zap.Logger
		err       error
	)

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		zapLogger, err = cfg.Build()
		if err != nil {
			return err
		}
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encCfg),
				zapcore.AddSync(os.Stdout),
				lvl,
			),
		)
	}

	zap.ReplaceGlobals(zapLogger)
	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a child of the global logger.
func Named(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

// Cleanup flushes buffered entries.
func Cleanup() {
	_ = Logger.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
