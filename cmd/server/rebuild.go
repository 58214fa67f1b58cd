package main

import (
	"fmt"

	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/spf13/cobra"
)

func newRebuildMasterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-master",
		Short: "Regenerate the master file from all reviewer files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCoreService(func(coreService *core.CoreService) error {
				rows, err := coreService.RebuildMaster()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Master file rebuilt with %d reviews\n", rows)
				return nil
			})
		},
	}
}
