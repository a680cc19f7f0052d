package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Log *zap.Logger
}

// LoggerInterface matches go.temporal.io/sdk/log.Logger so the same logger can be
// handed to the Temporal client.
type LoggerInterface interface {
	Logger() *zap.Logger

	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

func New(name, level string) (*Logger, error) {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal":
		level = strings.ToLower(level)
	default:
		level = "info"
	}

	stringCfg := fmt.Sprintf(`{
		"level": "%s",
		"encoding": "json",
		"outputPaths": ["stdout"],
		"errorOutputPaths": ["stderr"],
		"initialFields": {"app_name": "%s"},
		"encoderConfig": {
		  "messageKey": "message",
		  "levelKey": "level",
		  "timeKey": "timestamp",
		  "levelEncoder": "lowercase"
		}
	}`, level, name)

	var cfg zap.Config
	if err := json.Unmarshal([]byte(stringCfg), &cfg); err != nil {
		return nil, fmt.Errorf("loading logger config: %w", err)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoder(func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z0700"))
	})

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return &Logger{Log: logger}, nil
}

// Wrap adapts an existing zap logger.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{Log: l}
}

func (l *Logger) Logger() *zap.Logger {
	return l.Log
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Debugw(msg, keyvals...)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Infow(msg, keyvals...)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Warnw(msg, keyvals...)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Errorw(msg, keyvals...)
}

func (l *Logger) Sync() {
	_ = l.Log.Sync()
}
