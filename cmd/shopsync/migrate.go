package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/sync/remote"
)

// NewMigrateRemoteCommand creates the migrate-remote command.
func NewMigrateRemoteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-remote",
		Short: "Create or update the remote tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, adapter, err := openRemote(opts.cfg)
			if err != nil {
				return err
			}
			defer remote.Close(gdb)

			if err := adapter.AutoMigrate(cmd.Context()); err != nil {
				return err
			}
			logging.Info("[CLI] Remote schema migrated", zap.String("remote", adapter.String()))
			fmt.Fprintln(cmd.OutOrStdout(), "remote schema is up to date")
			return nil
		},
	}
}
