// Package logger provides a centralized logging facility with configurable
// verbosity levels, backed by zap.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("starting engine")
//	logger.Debugf("spot=%f vol=%f", spot, vol)
package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

var (
	mu      sync.RWMutex
	current = Info
	sugar   *zap.SugaredLogger
)

func init() {
	sugar = build(os.Stderr)
}

// build creates a console logger writing to w. Level gating happens in logf,
// so the zap core accepts everything from debug up.
func build(w io.Writer) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

// SetVerbosity sets the global logging verbosity.
// Values outside [Error, Trace] are clamped.
func SetVerbosity(v int) {
	l := Level(v)
	if l < Error {
		l = Error
	}
	if l > Trace {
		l = Trace
	}
	mu.Lock()
	current = l
	mu.Unlock()
}

// Verbosity returns the active verbosity level.
func Verbosity() Level {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetOutput redirects log output to w. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	_ = sugar.Sync()
	sugar = build(w)
	mu.Unlock()
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if current < l {
		return
	}
	switch l {
	case Error:
		sugar.Errorf(format, args...)
	case Info:
		sugar.Infof(format, args...)
	default:
		sugar.Debugf(format, args...)
	}
}

// Errorf logs an error-level message.
func Errorf(format string, args ...any) {
	logf(Error, format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, format, args...)
}

// Tracef logs very detailed execution traces.
// Emitted at zap debug level, only when verbosity is Trace.
func Tracef(format string, args ...any) {
	logf(Trace, "[trace] "+format, args...)
}
