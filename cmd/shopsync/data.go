package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/services"
)

// SaveOptions holds the save command flags.
type SaveOptions struct {
	*RootOptions
	Push bool
}

// NewSaveCommand creates the save command.
func NewSaveCommand(opts *RootOptions) *cobra.Command {
	saveOpts := &SaveOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "save <entity> <json|->",
		Short: "Write one record to the local store and queue it for sync",
		Long: `Save a record the way the app does: the local row and its queue entry
are written together. Pass "-" to read the JSON document from stdin.
Without --push the record waits for the next sync cycle.`,
		Example: `  shopsync save customers '{"name":"Ana","phoneNumber":"11999990000"}'
  shopsync save orders - --push < order.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := services.ParseWritableEntity(args[0])
			if err != nil {
				return err
			}
			doc := []byte(args[1])
			if args[1] == "-" {
				if doc, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			rec, err := models.DecodeRecord(doc)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInvalid, "invalid record", err)
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.session.Data.SaveEntity(cmd.Context(), entity, rec)
			if err != nil {
				return err
			}
			if err := saveOpts.pushIfAsked(cmd, a); err != nil {
				return err
			}
			return opts.formatter(cmd.OutOrStdout()).Print(saved, func(w io.Writer) {
				fmt.Fprintf(w, "saved %s %s\n", entity, saved.ID())
			})
		},
	}

	cmd.Flags().BoolVar(&saveOpts.Push, "push", false, "push the queue right after saving")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	delOpts := &SaveOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete one record locally and queue the deletion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := services.ParseWritableEntity(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Data.DeleteEntity(cmd.Context(), entity, args[1]); err != nil {
				return err
			}
			if err := delOpts.pushIfAsked(cmd, a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", entity, args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&delOpts.Push, "push", false, "push the queue right after deleting")
	return cmd
}

func (o *SaveOptions) pushIfAsked(cmd *cobra.Command, a *app) error {
	if !o.Push {
		return nil
	}
	res, err := a.session.Engine.PushPending(cmd.Context())
	if err != nil {
		return err
	}
	if o.Format == "text" {
		printPush(cmd.ErrOrStderr(), res)
	}
	return nil
}
