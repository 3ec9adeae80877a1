package log

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kamrankamilli/gsdoom/pkg/config"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	SetOutput(os.Stderr)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeName:    zapcore.FullNameEncoder,
	}
}

// enabled checks config.Debug at call time so the switch can flip after the
// logger is built.
var enabled = zap.LevelEnablerFunc(func(l zapcore.Level) bool {
	return l > zapcore.DebugLevel || config.Debug
})

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(w),
		enabled,
	)
	logger.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar())
}

// SetJSONOutput is SetOutput with the JSON encoder, for log shippers.
func SetJSONOutput(w io.Writer) {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		enabled,
	)
	logger.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar())
}

// Sync flushes buffered entries.
func Sync() { _ = logger.Load().Sync() }

// Named returns a component logger.
func Named(name string) *zap.SugaredLogger {
	return logger.Load().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(name)
}

func Info(args ...interface{}) { logger.Load().Info(fmt.Sprint(args...)) }
func Infof(f string, args ...interface{}) {
	logger.Load().Infof(f, args...)
}
func Warning(args ...interface{}) { logger.Load().Warn(fmt.Sprint(args...)) }
func Warningf(f string, args ...interface{}) {
	logger.Load().Warnf(f, args...)
}
func Error(args ...interface{}) { logger.Load().Error(fmt.Sprint(args...)) }
func Errorf(f string, args ...interface{}) {
	logger.Load().Errorf(f, args...)
}
func Debug(args ...interface{}) {
	if config.Debug {
		logger.Load().Debug(fmt.Sprint(args...))
	}
}
func Debugf(f string, args ...interface{}) {
	if config.Debug {
		logger.Load().Debugf(f, args...)
	}
}
