package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claimscan/internal/api"
)

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	attemptsCmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect recorded claim attempts",
	}

	attemptsCmd.AddCommand(newAttemptsListCommand(ctx))
	attemptsCmd.AddCommand(newAttemptsShowCommand(ctx))
	attemptsCmd.AddCommand(newAttemptsClearCommand(ctx))

	return attemptsCmd
}

func newAttemptsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ctx.client().Attempts(cmd.Context(), limit, statuses...)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.ID,
					record.ItemID,
					record.Mode,
					record.Source,
					record.Status,
					record.CreatedAt,
				})
			}
			table := renderTable(
				[]string{"ID", "Item", "Mode", "Source", "Status", "Created"},
				rows,
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of attempts to show")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, succeeded, failed)")
	return cmd
}

func newAttemptsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one attempt in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := ctx.client().Attempt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAttempt(cmd, record)
			return nil
		},
	}
}

func newAttemptsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the recorded attempt history",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := ctx.client().ClearAttempts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d attempt(s)\n", removed)
			return nil
		},
	}
}

func printAttempt(cmd *cobra.Command, record api.Attempt) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderStatusLine("ID", statusInfo, record.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Item", statusInfo, record.ItemID, colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, record.Mode, colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, record.Source, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", attemptStatusKind(record.Status), record.Status, colorize))
	if record.Message != "" {
		fmt.Fprintln(out, renderStatusLine("Message", statusInfo, record.Message, colorize))
	}
	if record.CreatedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Created", statusInfo, record.CreatedAt, colorize))
	}
	if record.ResolvedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Resolved", statusInfo, record.ResolvedAt, colorize))
	}
}

func attemptStatusKind(status string) statusKind {
	switch status {
	case "succeeded":
		return statusOK
	case "failed":
		return statusError
	case "pending":
		return statusWarn
	default:
		return statusInfo
	}
}
