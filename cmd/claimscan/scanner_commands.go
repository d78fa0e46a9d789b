package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claimscan/internal/api"
)

func newScannerCommand(ctx *commandContext) *cobra.Command {
	scannerCmd := &cobra.Command{
		Use:   "scanner",
		Short: "Control the camera scan session",
	}

	scannerCmd.AddCommand(newScannerOpenCommand(ctx))
	scannerCmd.AddCommand(newScannerCloseCommand(ctx))
	scannerCmd.AddCommand(newScannerDeviceCommand(ctx))
	scannerCmd.AddCommand(newScannerModeCommand(ctx))

	return scannerCmd
}

func newScannerOpenCommand(ctx *commandContext) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the scanner and start watching for codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().OpenScanner(cmd.Context(), device)
			if err != nil {
				return err
			}
			printScannerStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Camera device path (defaults to the configured device)")
	return cmd
}

func newScannerCloseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the scanner and release the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().CloseScanner(cmd.Context())
			if err != nil {
				return err
			}
			printScannerStatus(cmd, status)
			return nil
		},
	}
}

func newScannerDeviceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "device <path>",
		Short: "Switch the open scanner to another camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().SwitchDevice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printScannerStatus(cmd, status)
			return nil
		},
	}
}

func newScannerModeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mode <claim|collect>",
		Short: "Select what a detected code should trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().SetMode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printScannerStatus(cmd, status)
			return nil
		},
	}
}

func printScannerStatus(cmd *cobra.Command, status api.ScannerStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	kind := statusInfo
	if status.Open {
		kind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Scanner", kind, status.State, colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, status.Mode, colorize))
	if status.Device != "" {
		fmt.Fprintln(out, renderStatusLine("Device", statusInfo, status.Device, colorize))
	}
}
