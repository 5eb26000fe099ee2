package log

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger shared by the edge agent and the
// inference service. Key/value pairs follow the logr convention; a bare
// error in the list is logged under "error".
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)

	// Error logs at ErrorLevel. err may be nil.
	Error(err error, msg string, keysAndValues ...any)

	WithName(name string) Logger
	WithValues(keysAndValues ...any) Logger

	// Logr adapts the logger for klog and the Kubernetes helper libraries.
	Logr() logr.Logger

	Sync() error
}

var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// level is shared by every logger built with NewLogger so that SetLevel
// takes effect on loggers already handed out.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// NewLogger builds a zap-backed Logger from opts.
func NewLogger(opts *Options) Logger {
	if opts == nil {
		opts = NewOptions()
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: millis,
	}
	if opts.Format == "console" && opts.EnableColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	_ = SetLevel(opts.Level)

	outputPaths := opts.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	cfg := zap.Config{
		DisableCaller:    opts.DisableCaller,
		Level:            level,
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := cfg.Build(zap.AddCallerSkip(opts.CallerSkip), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic(fmt.Sprintf("failed to build zap logger: %v", err))
	}
	if opts.Name != "" {
		z = z.Named(opts.Name)
	}

	l := &zapLogger{sugar: z.Sugar()}
	if len(opts.Fields) > 0 {
		l.sugar = l.sugar.With(normalize(opts.Fields)...)
	}
	return l
}

// millis encodes durations as fractional milliseconds; loop latencies are
// rarely more than a few hundred of them.
func millis(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendFloat64(float64(d) / float64(time.Millisecond))
}

// SetLevel changes the minimum level of every logger built by NewLogger.
func SetLevel(lvl string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current minimum level.
func Level() string {
	return level.Level().String()
}

func (z *zapLogger) Debug(msg string, keysAndValues ...any) {
	z.sugar.Debugw(msg, normalize(keysAndValues)...)
}

func (z *zapLogger) Info(msg string, keysAndValues ...any) {
	z.sugar.Infow(msg, normalize(keysAndValues)...)
}

func (z *zapLogger) Warn(msg string, keysAndValues ...any) {
	z.sugar.Warnw(msg, normalize(keysAndValues)...)
}

func (z *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	kv := normalize(keysAndValues)
	if err != nil {
		kv = append(kv, zap.Error(err))
	}
	z.sugar.Errorw(msg, kv...)
}

func (z *zapLogger) WithName(name string) Logger {
	return &zapLogger{sugar: z.sugar.Named(name)}
}

func (z *zapLogger) WithValues(keysAndValues ...any) Logger {
	return &zapLogger{sugar: z.sugar.With(normalize(keysAndValues)...)}
}

func (z *zapLogger) Logr() logr.Logger {
	return zapr.NewLogger(z.sugar.Desugar())
}

func (z *zapLogger) Sync() error {
	return z.sugar.Sync()
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

var (
	once sync.Once
	std  atomic.Pointer[Logger]
)

func init() {
	nop := NewNopLogger()
	std.Store(&nop)
}

// Init installs the process-wide logger. Only the first call has effect.
func Init(opts *Options) {
	once.Do(func() {
		l := NewLogger(opts)
		std.Store(&l)
	})
}

// Std returns the process-wide logger.
func Std() Logger {
	return *std.Load()
}

func Debug(msg string, keysAndValues ...any)            { Std().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)             { Std().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)             { Std().Warn(msg, keysAndValues...) }
func Error(err error, msg string, keysAndValues ...any) { Std().Error(err, msg, keysAndValues...) }
func WithName(name string) Logger                       { return Std().WithName(name) }
func WithValues(keysAndValues ...any) Logger            { return Std().WithValues(keysAndValues...) }
func Sync() error                                       { return Std().Sync() }

type contextKey struct{}

// IntoContext returns a copy of ctx carrying l.
func IntoContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or the process-wide one.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return Std()
}
