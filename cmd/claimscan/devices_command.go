package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := ctx.client().Devices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cameras detected")
				return nil
			}

			rows := make([][]string, 0, len(devices))
			for _, device := range devices {
				rows = append(rows, []string{device.Path, device.Label})
			}
			table := renderTable([]string{"Device", "Label"}, rows)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
