package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/logging"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(opts *RootOptions) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete remote tombstones older than the retention window",
		Long: `Hard-delete soft-deleted rows in the remote store whose last update is older
than the retention window. The window defaults to the tenant's retentionMonths
setting; --months overrides it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if months < 0 {
				return fmt.Errorf("--months must not be negative")
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if months == 0 {
				settings, err := a.session.Data.GetSettings(cmd.Context())
				if err != nil {
					return err
				}
				months = settings.RetentionMonths
			}
			if months == 0 {
				return fmt.Errorf("no retention window: set retentionMonths or pass --months")
			}

			before := time.Now().AddDate(0, -months, 0)
			n, err := a.remote.PurgeSoftDeleted(cmd.Context(), a.session.TenantID(), before)
			if err != nil {
				return err
			}
			logging.Info("[CLI] Purged tombstones",
				zap.String("tenant_id", a.session.TenantID()),
				zap.Int("months", months),
				zap.Int64("rows", n))

			result := map[string]any{"purged": n, "before": before.UTC().Format(time.RFC3339)}
			return opts.formatter(cmd.OutOrStdout()).Print(result, func(w io.Writer) {
				fmt.Fprintf(w, "purged %d tombstones older than %s\n", n, before.Format("2006-01-02"))
			})
		},
	}

	cmd.Flags().IntVar(&months, "months", 0, "retention window in months (default from settings)")
	return cmd
}
