package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"carousel/internal/manifest"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect stored import metadata records",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List metadata records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			infos, err := manifest.List(cfg.Paths.MetadataDir)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No metadata records found")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Name,
					info.ModifiedAt.UTC().Format("2006-01-02 15:04"),
					humanize.IBytes(uint64(info.Size)),
				})
			}
			table := renderTable(
				[]string{"Record", "Modified", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record>",
		Short: "Display a metadata record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			infos, err := manifest.List(cfg.Paths.MetadataDir)
			if err != nil {
				return err
			}
			for _, info := range infos {
				if info.Name != name && info.Name != name+".metadata.json" {
					continue
				}
				record, loadErr := manifest.Load(info.Path)
				if loadErr != nil {
					return loadErr
				}
				return writeJSON(cmd, record)
			}
			return fmt.Errorf("record %q not found", name)
		},
	}
}
