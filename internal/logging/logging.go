// Package logging initializes the process-wide zap logger. Grounded on
// controlplane/pkg/yncp/logging.go for the Config/Init shape and on
// common/go/logging for color-vs-plain level encoding selected by terminal
// detection.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	Level zapcore.Level `yaml:"level"`
}

// DefaultConfig returns the info-level default.
func DefaultConfig() *Config {
	return &Config{Level: zapcore.InfoLevel}
}

// Init builds a *zap.SugaredLogger writing to stderr in console encoding.
// Level color is enabled only when stderr is an interactive terminal, so
// piped/redirected output (journald, log files) never carries ANSI codes.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zap.NewAtomicLevelAt(cfg.Level)

	zapCfg := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: build: %w", err)
	}

	return logger.Sugar(), level, nil
}
