package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carousel/internal/exports"
)

func newExportsCommand(ctx *commandContext) *cobra.Command {
	exportsCmd := &cobra.Command{
		Use:   "exports",
		Short: "Plan and track Takeout album exports",
	}

	exportsCmd.AddCommand(newExportsListCommand(ctx))
	exportsCmd.AddCommand(newExportsPlanCommand(ctx))
	exportsCmd.AddCommand(newExportsMarkCommand(ctx))

	return exportsCmd
}

func loadExportState(ctx *commandContext) (*exports.State, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	statePath := strings.TrimSpace(cfg.Exports.StateFile)
	if statePath == "" {
		return nil, "", fmt.Errorf("exports.state_file is not configured")
	}
	state, err := exports.LoadState(statePath)
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	for _, album := range cfg.Exports.Albums {
		state.Register(album, now)
	}
	return state, statePath, nil
}

func newExportsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked albums and their export history",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _, err := loadExportState(ctx)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, state)
			}
			if len(state.Albums) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No albums tracked")
				return nil
			}
			rows := make([][]string, 0, len(state.Albums))
			for _, album := range state.Albums {
				size := "small"
				if album.IsLarge {
					size = "large"
				}
				lastExport := "never"
				if album.Exported() {
					lastExport = formatDisplayTime(album.LastExportDate)
				}
				rows = append(rows, []string{album.Name, size, album.ExportFrequency, lastExport})
			}
			table := renderTable(
				[]string{"Album", "Size", "Frequency", "Last Export"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newExportsPlanCommand(ctx *commandContext) *cobra.Command {
	var exportAll bool

	cmd := &cobra.Command{
		Use:   "plan [album...]",
		Short: "Show which albums the next Takeout run should export",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, statePath, err := loadExportState(ctx)
			if err != nil {
				return err
			}
			if err := state.Save(statePath); err != nil {
				return fmt.Errorf("save export state: %w", err)
			}

			plan := state.BuildPlan(exportAll, args)
			out := cmd.OutOrStdout()
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"large":       plan.Large,
					"small_batch": plan.SmallBatch,
					"operations":  plan.Operations(),
				})
			}
			if plan.Empty() {
				fmt.Fprintln(out, "Nothing to export")
				return nil
			}
			for _, name := range plan.Large {
				fmt.Fprintf(out, "Export individually: %s (%s)\n", name, state.Frequency(name, time.Now()))
			}
			if len(plan.SmallBatch) > 0 {
				fmt.Fprintf(out, "Export as one batch: %s\n", strings.Join(plan.SmallBatch, ", "))
			}
			fmt.Fprintf(out, "Takeout operations needed: %d\n", plan.Operations())
			return nil
		},
	}

	cmd.Flags().BoolVar(&exportAll, "all", false, "Plan every tracked album regardless of export history")
	return cmd
}

func newExportsMarkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <album>...",
		Short: "Record that the named albums were exported",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, statePath, err := loadExportState(ctx)
			if err != nil {
				return err
			}
			state.MarkExported(args, time.Now())
			if err := state.Save(statePath); err != nil {
				return fmt.Errorf("save export state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d albums as exported\n", len(args))
			return nil
		},
	}
}
