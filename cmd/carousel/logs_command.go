package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carousel/internal/api"
	"carousel/internal/ipc"
	"carousel/internal/logs"
	"carousel/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var itemID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			apiClient, err := logs.NewStreamClient(cfg.Paths.APIBind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component: strings.TrimSpace(component),
					ItemID:    itemID,
				},
			}

			var legacy logstream.TailClient
			client, dialErr := ipc.Dial(ctx.socketPath())
			if dialErr == nil {
				defer client.Close()
				legacy = client
			} else if apiClient == nil {
				return wrapDialError(dialErr, ctx.socketPath())
			}

			printed, err := logstream.Stream(cmd.Context(), apiClient, legacy, opts,
				func(evt api.LogEvent) {
					fmt.Fprintln(out, formatLogEvent(evt))
				},
				func(line string) {
					fmt.Fprintln(out, line)
				},
			)
			if err != nil {
				if errors.Is(err, logstream.ErrFiltersRequireAPI) {
					return fmt.Errorf("log filters need the HTTP API; set paths.api_bind and restart the daemon")
				}
				if logs.IsAPIUnavailable(err) && legacy == nil {
					return wrapDialError(dialErr, ctx.socketPath())
				}
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show events for this queue item")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeSubject(evt.ItemID, evt.Stage); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}

func composeSubject(itemID int64, stage string) string {
	stage = strings.TrimSpace(stage)
	switch {
	case itemID > 0 && stage != "":
		return fmt.Sprintf("Item #%d (%s)", itemID, stage)
	case itemID > 0:
		return fmt.Sprintf("Item #%d", itemID)
	default:
		return stage
	}
}
