package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger scoped to one component.
type Logger struct {
	*zap.SugaredLogger
	base      *zap.SugaredLogger
	component string
}

// New builds a logger for component. env "production" selects JSON output
// at info level; anything else is console output at debug level.
func New(component, env string) *Logger {
	if env == "" {
		env = "development"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	level := zap.DebugLevel
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zap.InfoLevel
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level))
	return fromCore(core, component)
}

func fromCore(core zapcore.Core, component string) *Logger {
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return &Logger{
		SugaredLogger: base.With("component", component),
		base:          base,
		component:     component,
	}
}

// Nop discards everything. Used by tests and as a nil-safe default.
func Nop() *Logger {
	nop := zap.NewNop().Sugar()
	return &Logger{SugaredLogger: nop, base: nop, component: "nop"}
}

// Named returns a logger for a sub-component. The component field is
// replaced, not repeated.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		SugaredLogger: l.base.With("component", component),
		base:          l.base,
		component:     component,
	}
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.SugaredLogger.Sync()
}

// CronLogger adapts l to cron.Logger.
type CronLogger struct {
	L *Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debugw(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
