// Package log provides the process-wide zap logger used by nocturne's binaries.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger. Debug mode uses zap's development
// config; otherwise JSON production logs are written at the given level.
func Init(debug bool, level string) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		if level != "" {
			lvl, err := zapcore.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", level, err)
			}
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

// GetZapLogger returns the base zap logger for libraries that need one (like GORM)
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return baseLogger
}

// GetSugaredLogger returns the sugared logger handed to components. Unlike the
// package helpers it carries no extra caller skip.
func GetSugaredLogger() *zap.SugaredLogger {
	return GetZapLogger().WithOptions(zap.AddCallerSkip(-1)).Sugar()
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func sugar() *zap.SugaredLogger {
	if log == nil {
		GetZapLogger()
	}
	return log
}

func Debugf(template string, args ...interface{}) {
	sugar().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	sugar().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	sugar().Errorf(template, args...)
}
