package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/config"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, os.Stderr)
}
