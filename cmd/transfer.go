package cmd

import (
	"fmt"

	tomlstore "github.com/bnema/convtree/internal/adapters/store/toml"
	"github.com/spf13/cobra"
)

func newImportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <toml-file>",
		Short: "Replace the configured store with the content of a TOML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			source, err := tomlstore.NewStore(args[0])
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			snapshot, err := source.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			store, closeStore, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closeStore(); closeErr != nil && err == nil {
					err = fmt.Errorf("close store: %w", closeErr)
				}
			}()

			if err := store.Save(ctx, snapshot); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d conversations, %d messages into %s\n",
				len(snapshot.Conversations), len(snapshot.Messages), store.Path())
			return err
		},
	}
}

func newExportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <toml-file>",
		Short: "Write the configured store to a TOML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			store, closeStore, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closeStore(); closeErr != nil && err == nil {
					err = fmt.Errorf("close store: %w", closeErr)
				}
			}()

			snapshot, err := store.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("read store: %w", err)
			}

			target, err := tomlstore.NewStore(args[0])
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			if err := target.Save(ctx, snapshot); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d conversations, %d messages to %s\n",
				len(snapshot.Conversations), len(snapshot.Messages), target.Path())
			return err
		},
	}
}
