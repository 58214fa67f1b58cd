package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintf(out, "Images: %s\n", config.ImageFolder)
			fmt.Fprintf(out, "Data: %s\n", config.DataFolder)
			if config.Database.Type == "" {
				fmt.Fprintln(out, "Preview cache: disabled")
			} else {
				fmt.Fprintf(out, "Preview cache: %s\n", config.Database.Type)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
