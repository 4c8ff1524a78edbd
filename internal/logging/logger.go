// Package logging wraps zap with the console+file tee core and the
// contextual helpers the rest of the orchestrator expects, so no
// component ever reaches for the zap package-level globals directly.
package logging

import (
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger extends zap.Logger with run-scoped contextual helpers.
type Logger struct {
	*zap.Logger
	config *Config
}

// New builds a Logger writing plain text to stdout and JSON
// lines to a rotated file.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	level := zapcore.InfoLevel
	if cfg.Development {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level),
	)

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		config: cfg,
	}, nil
}

// WithRun scopes a logger to one orchestrator run, attaching a correlation
// id so every line for the run can be grepped together.
func (l *Logger) WithRun(runID string) *zap.Logger {
	return l.With(
		zap.String("run_id", runID),
		zap.Time("run_started_at", time.Now().UTC()),
	)
}

// WithWallet scopes a logger to one wallet's SwapRunner.
func (l *Logger) WithWallet(walletIndex int) *zap.Logger {
	return l.With(zap.Int("wallet_index", walletIndex))
}

// WithComponent labels which orchestrator component emitted a line.
func (l *Logger) WithComponent(component string) *zap.Logger {
	return l.With(zap.String("component", component))
}

// TrackPerformance logs the start and end of an operation, returning the
// function to call at the end.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
	opLogger.Debug("starting operation")
	return func() {
		opLogger.Debug("operation completed", zap.Duration("duration", time.Since(start)))
	}
}

// Sync flushes buffered log entries, swallowing the harmless errors zap
// returns when stdout/stderr is a non-syncable device (e.g. under a test
// runner or in a container).
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil {
		switch err.Error() {
		case "sync /dev/stdout: invalid argument", "sync /dev/stderr: inappropriate ioctl for device":
			return nil
		}
	}
	return err
}
