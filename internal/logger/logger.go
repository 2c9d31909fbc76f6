// Package logger builds the application's zap logger.
package logger

import (
	"errors"
	"os"

	"go.uber.org/zap"
)

// New returns a logger at level. The dev environment gets zap's development
// config, every other environment the production JSON config.
func New(level, env string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl

	return cfg.Build()
}

// Sync flushes buffered entries. Syncing a terminal fails with EINVAL, which is ignored.
func Sync(log *zap.Logger) error {
	if err := log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}
