package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var reviewer string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a reviewer's CSV to a file or stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCoreService(func(coreService *core.CoreService) error {
				target := strings.TrimSpace(output)
				if target == "" || target == "-" {
					return coreService.Export(reviewer, cmd.OutOrStdout())
				}

				f, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create %s: %w", target, err)
				}
				if err := coreService.Export(reviewer, f); err != nil {
					_ = f.Close()
					_ = os.Remove(target)
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", target, err)
				}
				slog.Info("exported reviews", "reviewer", reviewer, "path", target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reviewer, "reviewer", "r", "", "Reviewer name or ID")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (stdout when empty)")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

