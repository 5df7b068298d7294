package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// configureLogging switches logrus to JSON output at the configured level.
// With LOG_FILE set, entries also go to a rotated file.
func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Log.File == "" {
		logrus.SetOutput(os.Stdout)
		return nil
	}

	logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}))
	return nil
}
