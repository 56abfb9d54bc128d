package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It discards everything until Init is called.
var Logger = zap.NewNop()

// Init builds the process logger from cfg. Output always goes to stdout and,
// when a file path is configured, to that file as well.
func Init(cfg *model.LoggingConfig) error {
	built, err := build(cfg)
	if err != nil {
		return err
	}
	Logger = built.With(zap.String("service", "video-downloader-bot"))
	return nil
}

func build(cfg *model.LoggingConfig) (*zap.Logger, error) {
	outputs := []string{"stdout"}
	errorOutputs := []string{"stderr"}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}
		outputs = append(outputs, cfg.FilePath)
		errorOutputs = append(errorOutputs, cfg.FilePath)
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.EqualFold(cfg.Format, "console") {
		encoding = "console"
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  errorOutputs,
		DisableStacktrace: level > zapcore.DebugLevel,
	}.Build()
}

// Sync flushes buffered log entries
func Sync() error {
	return Logger.Sync()
}
