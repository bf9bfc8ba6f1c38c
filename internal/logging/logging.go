// Package logging carries the tagged log records emitted by workers and the
// orchestrator, and renders them through zap.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level of a Record
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Record is one structured log entry. Worker is zero for pool-level entries.
type Record struct {
	Level  Level
	Worker int
	Action string
	Msg    string
}

// Sink receives records. Implementations must be safe for concurrent use.
type Sink interface {
	Log(Record)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Record)

// Log implements Sink
func (f SinkFunc) Log(r Record) { f(r) }

// Discard drops every record
var Discard Sink = SinkFunc(func(Record) {})

// ZapSink writes records to a zap logger
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger as a Sink
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Log implements Sink
func (s *ZapSink) Log(r Record) {
	fields := []zap.Field{zap.String("action", r.Action)}
	if r.Worker != 0 {
		fields = append(fields, zap.Int("worker", r.Worker))
	}

	switch r.Level {
	case LevelDebug:
		s.logger.Debug(r.Msg, fields...)
	case LevelSuccess:
		s.logger.Info(r.Msg, append(fields, zap.Bool("success", true))...)
	case LevelWarn:
		s.logger.Warn(r.Msg, fields...)
	case LevelError:
		s.logger.Error(r.Msg, fields...)
	default:
		s.logger.Info(r.Msg, fields...)
	}
}

// Scoped stamps worker index onto every record it emits
type Scoped struct {
	sink   Sink
	worker int
}

// ForWorker returns a helper that logs on behalf of worker idx
func ForWorker(sink Sink, idx int) Scoped {
	if sink == nil {
		sink = Discard
	}
	return Scoped{sink: sink, worker: idx}
}

func (s Scoped) emit(level Level, action, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.sink.Log(Record{Level: level, Worker: s.worker, Action: action, Msg: msg})
}

func (s Scoped) Debug(action, format string, args ...any)   { s.emit(LevelDebug, action, format, args...) }
func (s Scoped) Info(action, format string, args ...any)    { s.emit(LevelInfo, action, format, args...) }
func (s Scoped) Success(action, format string, args ...any) { s.emit(LevelSuccess, action, format, args...) }
func (s Scoped) Warn(action, format string, args ...any)    { s.emit(LevelWarn, action, format, args...) }
func (s Scoped) Error(action, format string, args ...any)   { s.emit(LevelError, action, format, args...) }

// New builds the process logger: a console core on stderr and, when logDir
// is not empty, a JSON core writing to logDir/regpool_<start>.log.
func New(level string, logDir string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := fmt.Sprintf("regpool_%s.log", time.Now().Format("20060102_150405"))
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), lvl))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
