package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/assistpro/shopsync/internal/models"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the pending-operations queue",
	}
	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueRetryCommand(opts))
	cmd.AddCommand(newQueueDiscardCommand(opts))
	return cmd
}

func newQueueListCommand(opts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.OperationStatus(status)
			switch st {
			case "", models.OperationPending, models.OperationDead:
			default:
				return fmt.Errorf("invalid status %q: must be pending or dead", status)
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ops, err := a.session.Queue.List(cmd.Context(), a.session.TenantID(), st)
			if err != nil {
				return err
			}
			if ops == nil {
				ops = []models.PendingOperation{}
			}
			return opts.formatter(cmd.OutOrStdout()).Print(ops, func(w io.Writer) {
				printOperations(w, ops)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|dead)")
	return cmd
}

func newQueueRetryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Move dead operations back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.session.Queue.RetryDead(cmd.Context(), a.session.TenantID())
			if err != nil {
				return err
			}
			return opts.formatter(cmd.OutOrStdout()).Print(map[string]int{"requeued": n}, func(w io.Writer) {
				fmt.Fprintf(w, "requeued %d operations\n", n)
			})
		},
	}
}

func newQueueDiscardCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <id>",
		Short: "Drop a dead operation for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid operation id %q", args[0])
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Queue.Discard(cmd.Context(), a.session.TenantID(), id); err != nil {
				return err
			}
			return opts.formatter(cmd.OutOrStdout()).Print(map[string]int64{"discarded": id}, func(w io.Writer) {
				fmt.Fprintf(w, "discarded operation %d\n", id)
			})
		},
	}
}

func printOperations(w io.Writer, ops []models.PendingOperation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTITY\tRECORD\tACTION\tSTATUS\tATTEMPTS\tNEXT\tERROR")
	for _, op := range ops {
		next := "-"
		if op.Status == models.OperationPending && op.NextAttemptAt > 0 {
			next = op.NextAttemptAtTime().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			op.ID, op.EntityType, op.RecordID, op.Action, op.Status, op.Attempts, next, op.LastError)
	}
	tw.Flush()
}
