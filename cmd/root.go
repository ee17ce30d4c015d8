package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	service "github.com/okian/audiomatch/internal/app"
	"github.com/okian/audiomatch/internal/config"
	"github.com/okian/audiomatch/pkg/logger"
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

// ensureConfig loads configuration once. The --config flag takes the place
// of AUDIOMATCH_CONFIG when set.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if err := os.Setenv(config.ConfigPathEnv, path); err != nil {
					c.configErr = err
					return
				}
			}
		}
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) initLogger(cmd *cobra.Command) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// withService starts an in-process service for one command.
func (c *commandContext) withService(ctx context.Context, fn func(*service.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	svc := service.New(cfg, service.WithLogger(logger.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	return fn(svc)
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "audiomatch",
		Short:         "Audio component recommendation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.initLogger(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRecommendCommand(ctx))
	rootCmd.AddCommand(newPowerCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newLoadcheckCommand())

	return rootCmd
}
