package clobengine

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the engine's default logger: JSON to a size-rotated file
// plus console output at the given level. An empty dir logs to stderr only.
func NewLogger(dir, level string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	consoleEnc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), lvl),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			rotated := &lumberjack.Logger{
				Filename:   filepath.Join(dir, "engine.log"),
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
			cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotated), lvl))
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
