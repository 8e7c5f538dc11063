package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	syncpkg "github.com/assistpro/shopsync/internal/sync"
)

// NewPushCommand creates the push command.
func NewPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Replay the pending-operations queue against the remote store once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.session.Engine.PushPending(cmd.Context())
			if err != nil {
				return err
			}
			return opts.formatter(cmd.OutOrStdout()).Print(res, func(w io.Writer) {
				printPush(w, res)
			})
		},
	}
}

// NewPullCommand creates the pull command.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Hydrate the local store from the remote store once",
		Long: `Fetch every entity of the tenant from the remote store and replace the
local copy. Records with queued local edits are kept until they are pushed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.session.Engine.PullAll(cmd.Context())
			if err != nil {
				return err
			}
			return opts.formatter(cmd.OutOrStdout()).Print(res, func(w io.Writer) {
				printPull(w, res)
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and recent sync errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.session.Engine.Snapshot(cmd.Context())
			return opts.formatter(cmd.OutOrStdout()).Print(snap, func(w io.Writer) {
				fmt.Fprintf(w, "tenant:  %s\n", snap.TenantID)
				fmt.Fprintf(w, "pending: %d\n", snap.Pending)
				fmt.Fprintf(w, "dead:    %d\n", snap.Dead)
			})
		},
	}
}

func printPush(w io.Writer, res *syncpkg.PushResult) {
	fmt.Fprintf(w, "pushed %d of %d operations in %s\n", res.Pushed, res.Attempted, res.Duration.Round(time.Millisecond))
	if res.Superseded > 0 {
		fmt.Fprintf(w, "  %d re-queued after a newer local edit\n", res.Superseded)
	}
	if res.Failed > 0 {
		fmt.Fprintf(w, "  %d failed (%d dead)\n", res.Failed, res.Dead)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s %s: [%s] %s\n", e.Entity, e.RecordID, e.Code, e.Message)
	}
}

func printPull(w io.Writer, res *syncpkg.PullResult) {
	fmt.Fprintf(w, "applied %d records, pruned %d, %d conflicts in %s\n",
		res.Applied, res.Pruned, res.Conflicts, res.Duration.Round(time.Millisecond))
	entities := make([]string, 0, len(res.Fetched))
	for entity := range res.Fetched {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	for _, entity := range entities {
		fmt.Fprintf(w, "  %-14s %d\n", entity, res.Fetched[entity])
	}
	if res.Skipped > 0 {
		fmt.Fprintf(w, "skipped %d untranslatable remote rows, see the log\n", res.Skipped)
	}
}
