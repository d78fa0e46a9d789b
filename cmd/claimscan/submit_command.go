package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claimscan/internal/attempts"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <payload>",
		Short: "Submit a payload manually, as if the camera had scanned it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attempt, err := ctx.client().Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			kind := statusOK
			if attempt.Status == string(attempts.StatusFailed) {
				kind = statusError
			}
			message := attempt.Message
			if message == "" {
				message = attempt.Status
			}
			fmt.Fprintln(out, renderStatusLine("Result", kind, message, colorize))
			fmt.Fprintln(out, renderStatusLine("Item", statusInfo, attempt.ItemID, colorize))
			fmt.Fprintln(out, renderStatusLine("Attempt", statusInfo, attempt.ID, colorize))
			return nil
		},
	}
}
