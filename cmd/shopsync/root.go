package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/assistpro/shopsync/internal/config"
	"github.com/assistpro/shopsync/internal/logging"
)

const serviceName = "shopsync"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Tenant  string
	DataDir string
	Format  string // "json" | "text"
	Verbose bool

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the shopsync root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopsync",
		Short: "Offline-first sync host for a shop tenant",
		Long: "shopsync keeps a local SQLite copy of one tenant's shop data, queues every local\n" +
			"write and replays the queue against the remote store whenever it is reachable.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Tenant, "tenant", "t", "", "tenant id (default $TENANT_ID)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "local data directory (default $DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewMigrateRemoteCommand(opts))

	return cmd
}

// load reads the environment, applies flag overrides and installs the logger.
func (o *RootOptions) load() error {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return err
	}
	if o.Tenant != "" {
		cfg.App.TenantID = o.Tenant
	}
	if o.DataDir != "" {
		cfg.App.DataDir = o.DataDir
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	err = logging.Init(logging.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.App.Env,
		Service:     cfg.ServiceName,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.Debug("[CLI] Configuration loaded", cfg.LogFields()...)

	o.cfg = cfg
	return nil
}

// requireTenant returns the configured tenant or a usage error.
func (o *RootOptions) requireTenant() (string, error) {
	if o.cfg == nil || o.cfg.App.TenantID == "" {
		return "", fmt.Errorf("no tenant selected: pass --tenant or set TENANT_ID")
	}
	return o.cfg.App.TenantID, nil
}

func (o *RootOptions) formatter(w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w}
}
