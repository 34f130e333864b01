package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/llmrun/internal/config"
	"github.com/samcharles93/llmrun/internal/logger"
	"github.com/samcharles93/llmrun/internal/session"
)

// loadModelConfig reads the model configuration and layers, in order, the
// user config defaults, the --set patch and the --backend flag over it.
func loadModelConfig(user Config) (*config.Config, error) {
	cfg, err := config.Load(modelDir)
	if err != nil {
		return nil, err
	}
	if user.MaxNewTokens != nil {
		if _, ok := cfg.Get(config.KeyMaxNewTokens); !ok {
			if err := cfg.Set(config.KeyMaxNewTokens, *user.MaxNewTokens); err != nil {
				return nil, err
			}
		}
	}
	if user.ReuseKV != nil {
		if _, ok := cfg.Get(config.KeyReuseKV); !ok {
			if err := cfg.Set(config.KeyReuseKV, *user.ReuseKV); err != nil {
				return nil, err
			}
		}
	}
	if configPatch != "" {
		if err := cfg.MergePatch([]byte(configPatch)); err != nil {
			return nil, err
		}
	}
	if backendName != "" {
		if err := cfg.Set(config.KeyBackend, backendName); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openSession loads the model configuration and a ready session. The caller
// closes the session.
func openSession(ctx context.Context, user Config, opts ...session.Option) (*session.Session, error) {
	cfg, err := loadModelConfig(user)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	opts = append([]session.Option{session.WithLogger(logger.FromContext(ctx))}, opts...)
	s, err := session.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load model: %w", err)
	}
	return s, nil
}
