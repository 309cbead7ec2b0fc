// Package logging builds the process logger from config.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"breezerelay/internal/config"
)

// New returns a logrus logger configured from cfg. The returned closer
// flushes and closes a rotating file output, and is a no-op otherwise.
func New(cfg config.Log) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	}

	closer := func() error { return nil }
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "file":
		w, err := fileWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		if lvl == logrus.DebugLevel {
			logger.SetOutput(io.MultiWriter(w, os.Stdout))
		} else {
			logger.SetOutput(w)
		}
		closer = w.Close
	default:
		logger.SetOutput(os.Stdout)
	}
	return logger, closer, nil
}

func fileWriter(cfg config.Log) (*lumberjack.Logger, error) {
	file := cfg.File
	if file == "" {
		file = filepath.Join("logs", "breezerelay.log")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, nil
}

// Discard is a logger that drops everything, for tools and tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
