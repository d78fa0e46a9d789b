package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"claimscan/internal/ctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and scanner status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := ctx.client().Status(cmd.Context())
			if errors.Is(err, ctl.ErrDaemonUnreachable) {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				return nil
			}
			if err != nil {
				return err
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			daemonKind := statusOK
			daemonMessage := fmt.Sprintf("running (pid %d)", status.PID)
			if !status.Running {
				daemonKind = statusWarn
				daemonMessage = "stopped"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, daemonMessage, colorize))
			if status.LockFilePath != "" {
				fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			}
			if status.AttemptsDBPath != "" {
				fmt.Fprintln(out, renderStatusLine("Attempts DB", statusInfo, status.AttemptsDBPath, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Scanner", colorize) {
				fmt.Fprintln(out, line)
			}
			scannerKind := statusInfo
			scannerMessage := status.Scanner.State
			if status.Scanner.Open {
				scannerKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("State", scannerKind, scannerMessage, colorize))
			fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, status.Scanner.Mode, colorize))
			if status.Scanner.Device != "" {
				fmt.Fprintln(out, renderStatusLine("Device", statusInfo, status.Scanner.Device, colorize))
			}
			if status.Scanner.LastItemID != "" {
				fmt.Fprintln(out, renderStatusLine("Last item", statusInfo, status.Scanner.LastItemID, colorize))
			}
			if status.Scanner.LastOutcome != "" {
				fmt.Fprintln(out, renderStatusLine("Last outcome", statusInfo, status.Scanner.LastOutcome, colorize))
			}

			if rows := buildAttemptStatsRows(status.AttemptStats); len(rows) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Attempts", colorize) {
					fmt.Fprintln(out, line)
				}
				table := renderTable([]string{"Status", "Count"}, rows, 1)
				fmt.Fprintln(out, table)
			}

			if len(status.Dependencies) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, dep := range status.Dependencies {
					kind := statusOK
					if !dep.Available {
						kind = statusError
						if dep.Optional {
							kind = statusWarn
						}
					}
					message := dep.Detail
					if message == "" {
						message = dep.Command
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
				}
			}

			return nil
		},
	}
}

func buildAttemptStatsRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(stats[key])})
	}
	return rows
}
