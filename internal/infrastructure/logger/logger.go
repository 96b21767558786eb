package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*zap.SugaredLogger
}

// Numeric LOGGER_LEVEL values follow the severity order debug=0 .. unknown=5.
var levelNames = map[string]zapcore.Level{
	"debug":   zapcore.DebugLevel,
	"info":    zapcore.InfoLevel,
	"warn":    zapcore.WarnLevel,
	"warning": zapcore.WarnLevel,
	"error":   zapcore.ErrorLevel,
	"fatal":   zapcore.FatalLevel,
	"unknown": zapcore.FatalLevel,
}

var levelNumbers = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
	zapcore.FatalLevel,
	zapcore.FatalLevel,
}

// ParseLevel accepts a level name in any case or its number. Anything else
// yields info and false.
func ParseLevel(raw string) (zapcore.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if level, ok := levelNames[raw]; ok {
		return level, true
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < len(levelNumbers) {
		return levelNumbers[n], true
	}
	return zapcore.InfoLevel, false
}

// New writes human readable lines to stdout and, when logFile is set, JSON
// entries to a rotated file.
func New(logLevel, logFile string) (*Logger, error) {
	return newLogger(logLevel, logFile, os.Stdout)
}

func newLogger(logLevel, logFile string, console io.Writer) (*Logger, error) {
	level, known := ParseLevel(logLevel)

	cores := []zapcore.Core{consoleCore(console, level)}
	if logFile != "" {
		core, err := fileCore(logFile, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	log := &Logger{zapLogger.Sugar()}
	if !known && logLevel != "" {
		log.Warnf("Unknown LOGGER_LEVEL %q, using info", logLevel)
	}
	return log, nil
}

// consoleCore mimics a plain line logger: time, level and message, with no
// caller or stack noise on stdout.
func consoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000"),
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
}

func fileCore(path string, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(cfg), writer, level), nil
}

// Nop discards everything. Used by tests and as a fallback.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// WithRun tags every entry with the run identifier.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{l.SugaredLogger.With("run_id", runID)}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l.SugaredLogger.Named(name)}
}

func (l *Logger) Close() {
	_ = l.Sync()
}
