// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"

	"github.com/blendle/zapdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a SugaredLogger. On GCP it keeps zapdriver's
// structured JSON encoding; elsewhere it switches to a colored console
// encoder. level accepts the usual zap names (debug, info, warn,
// error); unrecognized values fall back to the config default.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	config := zapdriver.NewProductionConfig()

	if os.Getenv("ON_GCP") != "true" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("zap.Build() failed: %v", err)
	}

	return logger.Sugar(), nil
}
