package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			daemonKind := statusError
			daemonMessage := "not processing"
			if status.Running {
				daemonKind = statusOK
				daemonMessage = fmt.Sprintf("pid %d", status.PID)
			}
			fmt.Fprintln(out, "Daemon")
			fmt.Fprintln(out, renderStatusLine("Workers", daemonKind, daemonMessage, colorize))
			if status.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
			}
			if status.LastJobID != "" {
				fmt.Fprintln(out, renderStatusLine("Last job", statusInfo, shortID(status.LastJobID), colorize))
			}

			fmt.Fprintln(out, "\nStages")
			for _, health := range status.StageHealth {
				kind := statusOK
				message := "ready"
				if !health.Ready {
					kind = statusError
					message = health.Detail
				}
				fmt.Fprintln(out, renderStatusLine(health.Name, kind, message, colorize))
			}

			fmt.Fprintln(out, "\nQueue")
			if len(status.QueueStats) == 0 {
				fmt.Fprintln(out, statusIndent+"empty")
				return nil
			}
			statuses := make([]string, 0, len(status.QueueStats))
			for name := range status.QueueStats {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			rows := make([][]string, 0, len(statuses))
			for _, name := range statuses {
				rows = append(rows, []string{name, fmt.Sprintf("%d", status.QueueStats[name])})
			}
			fmt.Fprintln(out, renderTable(queueColumns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the status as JSON")
	return cmd
}
