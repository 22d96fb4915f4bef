// Package logger provides the structured logging used across the
// binary-provisioning and instance-supervision subsystem: a colored
// console encoder for interactive runs, an optional rotated file sink
// (Options.FileOutput; nothing in this module turns it on from
// MINIOTST_DEBUG), and a process-wide global logger alongside
// per-component instances created with With().
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Level is the subsystem's log level, independent of zapcore.Level so the
// console encoder can format it without importing zap at call sites.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

func (l Level) toZapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options configures a Logger. See DefaultOptions for the defaults used
// when a caller doesn't need anything unusual.
type Options struct {
	ConsoleLevel  Level
	ConsoleOutput bool
	ColorConsole  bool

	FileLevel   Level
	FileOutput  bool
	LogFilePath string
	// MaxSizeMB, MaxBackups and MaxAgeDays bound the rotated debug trace
	// file; zero means lumberjack's own defaults (100 MB per file, every
	// backup kept, no age cap).
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	TimestampFormat string
}

// DefaultOptions logs Info+ to the console, in color, with no file sink.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel:    InfoLevel,
		ConsoleOutput:   true,
		ColorConsole:    true,
		FileLevel:       DebugLevel,
		FileOutput:      false,
		TimestampFormat: time.RFC3339,
		MaxSizeMB:       10,
		MaxBackups:      3,
	}
}

// Logger wraps zap.SugaredLogger. The zero value is not usable; obtain
// one via NewLogger or the process-wide instance via Get.
type Logger struct {
	*zap.SugaredLogger
	opts Options
}

var (
	globalLogger *Logger
	globalOnce   sync.Once
)

// Init configures the global logger. Only the first call takes effect;
// later calls are no-ops, matching the "configure once at startup" idiom.
func Init(opts Options) {
	globalOnce.Do(func() {
		l, err := NewLogger(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: falling back to a bare console logger: %v\n", err)
			l, _ = NewLogger(DefaultOptions())
		}
		globalLogger = l
	})
}

// Get returns the global logger, initializing it with DefaultOptions if
// Init was never called.
func Get() *Logger {
	if globalLogger == nil {
		Init(DefaultOptions())
	}
	return globalLogger
}

// NewLogger builds a standalone Logger from opts, independent of the
// global instance. Useful for a Supervisor instance that wants its own
// log file per test run.
func NewLogger(opts Options) (*Logger, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = time.RFC3339
	}

	var cores []zapcore.Core

	if opts.ConsoleOutput {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		cfg.TimeKey = "time"
		cfg.LevelKey = ""
		cfg.MessageKey = "msg"

		var enc zapcore.Encoder
		if opts.ColorConsole {
			enc = newConsoleEncoder(cfg, true)
		} else {
			enc = newConsoleEncoder(cfg, false)
		}

		level := opts.ConsoleLevel
		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level.toZapLevel() })
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), enabler))
	}

	if opts.FileOutput {
		if opts.LogFilePath == "" {
			return nil, fmt.Errorf("log file path cannot be empty when file output is enabled")
		}
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc := zapcore.NewJSONEncoder(cfg)

		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})

		level := opts.FileLevel
		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level.toZapLevel() })
		cores = append(cores, zapcore.NewCore(enc, writer, enabler))
	}

	if len(cores) == 0 {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), opts: opts}, nil
	}

	core := zapcore.NewTee(cores...)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zl.Sugar(), opts: opts}, nil
}

// With returns a child logger carrying the given key/value pairs on
// every subsequent call, e.g. logger.Get().With("component", "downloader").
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), opts: l.opts}
}

func (l *Logger) Debugf(template string, args ...interface{}) { l.log(DebugLevel, template, args...) }
func (l *Logger) Infof(template string, args ...interface{})  { l.log(InfoLevel, template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})  { l.log(WarnLevel, template, args...) }
func (l *Logger) Errorf(template string, args ...interface{}) { l.log(ErrorLevel, template, args...) }

func (l *Logger) log(level Level, template string, args ...interface{}) {
	if l == nil || l.SugaredLogger == nil {
		fmt.Fprintf(os.Stderr, "[%s] "+template+"\n", append([]interface{}{level}, args...)...)
		return
	}
	msg := fmt.Sprintf(template, args...)
	lvlField := zap.String("customlevel", level.String())
	sl := l.SugaredLogger.WithOptions(zap.AddCallerSkip(1))
	switch level {
	case DebugLevel:
		sl.Debugw(msg, lvlField)
	case InfoLevel:
		sl.Infow(msg, lvlField)
	case WarnLevel:
		sl.Warnw(msg, lvlField)
	case ErrorLevel:
		sl.Errorw(msg, lvlField)
	}
}

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}

func Debugf(template string, args ...interface{}) { Get().log(DebugLevel, template, args...) }
func Infof(template string, args ...interface{})  { Get().log(InfoLevel, template, args...) }
func Warnf(template string, args ...interface{})  { Get().log(WarnLevel, template, args...) }
func Errorf(template string, args ...interface{}) { Get().log(ErrorLevel, template, args...) }

// SyncGlobal flushes the global logger's buffered entries.
func SyncGlobal() error { return Get().Sync() }
