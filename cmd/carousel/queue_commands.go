package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"carousel/internal/api"
	"carousel/internal/ipc"
	"carousel/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the import queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthSubcommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				stringStats := make(map[string]int)
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					for status, count := range status.QueueStats {
						stringStats[status] = count
					}
				} else {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					for status, count := range stats {
						stringStats[string(status)] = count
					}
				}

				rows := buildQueueStatusRows(stringStats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var items []ipc.QueueItem
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					items = resp.Items
				} else {
					var statuses []queue.Status
					for _, value := range listStatuses {
						if parsed, ok := queue.ParseStatus(value); ok {
							statuses = append(statuses, parsed)
						}
					}
					stored, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					items = make([]ipc.QueueItem, 0, len(stored))
					for _, item := range stored {
						items = append(items, api.FromQueueItem(item))
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Export", "Source", "Status", "Created", "Fingerprint"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show details for a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var item *ipc.QueueItem
				if client != nil {
					resp, describeErr := client.QueueDescribe(id)
					if describeErr != nil {
						return describeErr
					}
					if resp != nil {
						item = &resp.Item
					}
				} else {
					stored, getErr := store.GetByID(cmd.Context(), id)
					if getErr != nil {
						return getErr
					}
					if stored != nil {
						converted := api.FromQueueItem(stored)
						item = &converted
					}
				}
				if item == nil {
					return fmt.Errorf("queue item %d not found", id)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, item)
				}
				printQueueItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					switch {
					case clearCompleted:
						resp, err := client.QueueClearCompleted()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d completed items\n", resp.Removed)
					case clearFailed:
						resp, err := client.QueueClearFailed()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d failed items\n", resp.Removed)
					default:
						resp, err := client.QueueClear()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d queue items\n", resp.Removed)
					}
					return nil
				}

				var removed int64
				var err error
				switch {
				case clearCompleted:
					removed, err = store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed items\n", removed)
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				default:
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.QueueClearFailed()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", resp.Removed)
					return nil
				}
				removed, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", removed)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight items to their previous stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.QueueReset()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", resp.Updated)
					return nil
				}
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed queue items",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					var updated int64
					var err error
					if client != nil {
						resp, retryErr := client.QueueRetry(nil)
						if retryErr != nil {
							return retryErr
						}
						updated = resp.Updated
					} else {
						updated, err = store.RetryFailed(cmd.Context())
						if err != nil {
							return err
						}
					}
					fmt.Fprintf(out, "Retried %d failed items\n", updated)
					return nil
				}

				for _, id := range ids {
					var updated int64
					if client != nil {
						resp, err := client.QueueRetry([]int64{id})
						if err != nil {
							return err
						}
						updated = resp.Updated
					} else {
						count, err := store.RetryFailed(cmd.Context(), id)
						if err != nil {
							return err
						}
						updated = count
					}
					if updated > 0 {
						fmt.Fprintf(out, "Item %d reset for retry\n", id)
					} else {
						fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueHealthSubcommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var health queue.HealthSummary
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					health = queue.HealthSummary(*resp)
				} else {
					summary, err := store.Health(cmd.Context())
					if err != nil {
						return err
					}
					health = summary
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, health)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)
				return nil
			})
		},
	}
}
