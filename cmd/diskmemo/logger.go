package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/diskmemo/config"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// initLogger builds a JSON logger writing to cfg.LogFile (rotated) or to
// fallback. A log file that cannot be prepared degrades to fallback.
func initLogger(cfg config.Config, fallback io.Writer) (*logrus.Logger, error) {
	lvl := strings.TrimSpace(cfg.LogLevel)
	if lvl == "" {
		lvl = "info"
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	output, outErr := buildOutput(cfg, fallback)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFile,
		}).Warn(outErr.Error())
	}
	return logger, nil
}

func buildOutput(cfg config.Config, fallback io.Writer) (io.Writer, error) {
	if cfg.LogFile == "" {
		return fallback, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fallback, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		LocalTime:  true,
	}, nil
}
