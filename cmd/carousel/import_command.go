package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"carousel/internal/ipc"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var deviceLabel string

	cmd := &cobra.Command{
		Use:   "import <directory>",
		Short: "Queue a local directory of media for import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("directory does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect path: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", absPath)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Import(absPath, deviceLabel)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued folder import as item #%d (%s)\n", resp.Item.ID, resp.Item.ExportName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&deviceLabel, "label", "", "Device label to record for SD-card imports")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rescan the incoming directory for new archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				switch resp.Queued {
				case 0:
					fmt.Fprintln(cmd.OutOrStdout(), "No new exports found")
				case 1:
					fmt.Fprintln(cmd.OutOrStdout(), "Queued 1 new export")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %d new exports\n", resp.Queued)
				}
				return nil
			})
		},
	}
}
