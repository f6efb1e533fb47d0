// Package logger builds the zap logger used across the service. The logger is
// constructed once in main and passed explicitly; nothing reads it from a global.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
