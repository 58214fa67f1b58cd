package main

import (
	"fmt"
	"strconv"

	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show review progress of every reviewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCoreService(func(coreService *core.CoreService) error {
				statuses, err := coreService.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(statuses) == 0 {
					fmt.Fprintln(out, "No reviews found yet.")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Reviewer", "Completed", "Remaining", "Total", "Missing", "Progress", "Note"},
					statusRows(statuses),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
					isTerminal(out),
				))
				return nil
			})
		},
	}
}

func statusRows(statuses []core.ReviewerStatus) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		note := ""
		if s.Err != nil {
			note = s.Err.Error()
		}
		rows = append(rows, []string{
			s.Reviewer,
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Remaining),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Missing),
			fmt.Sprintf("%.0f%%", s.Progress*100),
			note,
		})
	}
	return rows
}
