package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root zap logger for the given environment.
// Local environments get human-readable console output; everything else gets
// production JSON with sampling disabled so coaching-flow logs are complete.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
