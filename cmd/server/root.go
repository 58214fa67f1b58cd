package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *core.ServiceConfig
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// getConfigPath prefers the --config flag, then CONFIG_PATH, then config.yaml
// in the working directory.
func (c *commandContext) getConfigPath() (string, error) {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path, nil
		}
	}
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "config.yaml"), nil
}

// ensureConfig loads the configuration once. A missing file falls back to the
// defaults; a file that exists but is invalid is an error.
func (c *commandContext) ensureConfig() (*core.ServiceConfig, error) {
	c.configOnce.Do(func() {
		c.configPath, c.configErr = c.getConfigPath()
		if c.configErr != nil {
			return
		}
		config, err := core.LoadConfig(c.configPath)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "path", c.configPath)
			config, err = core.DefaultConfig(), nil
		}
		c.config, c.configErr = config, err
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	serveCmd := newServeCommand(ctx)

	rootCmd := &cobra.Command{
		Use:           "reviewdesk",
		Short:         "Review a folder of medical images and record diagnoses",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults to $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newRebuildMasterCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// withCoreService runs fn against a core service that is closed afterwards.
func (c *commandContext) withCoreService(fn func(*core.CoreService) error) error {
	config, err := c.ensureConfig()
	if err != nil {
		return err
	}
	// one-shot commands do not need to watch the image folder
	oneShot := *config
	oneShot.WatchImages = false

	coreService, err := core.NewCoreService(&oneShot)
	if err != nil {
		return err
	}
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("core service close error", "error", err)
		}
	}()
	return fn(coreService)
}
