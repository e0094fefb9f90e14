package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bnema/convtree/internal/adapters/render/detail"
	"github.com/bnema/convtree/internal/application"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newShowCmd(app *app) *cobra.Command {
	var asJSON bool
	var maxTodos int

	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Load a conversation tree and print its derived view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, app, args[0], asJSON, maxTodos)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the derived state as JSON")
	cmd.Flags().IntVar(&maxTodos, "max-todos", 10, "todo items to list (0 lists all)")

	return cmd
}

func runShow(cmd *cobra.Command, app *app, id string, asJSON bool, maxTodos int) (err error) {
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

	conversation, err := app.lookupConversation(ctx, store, id)
	if err != nil {
		return err
	}

	var engine *application.Engine
	load := func(ctx context.Context) error {
		if err := engine.LoadData(ctx); err != nil {
			return err
		}

		reports, err := store.Reports(ctx)
		if err != nil {
			app.logger.Warn("reports unavailable, references stay unresolved", zap.Error(err))
		} else {
			engine.ApplyReports(reports)
		}

		engine.Settle()
		return nil
	}

	if asJSON {
		engine = app.newEngine(conversation, store, nil)
		defer engine.Close()
		err = load(ctx)
	} else {
		spinner := newLoadSpinner(ctx, cmd.ErrOrStderr(), id, load)
		engine = app.newEngine(conversation, store, spinner.Phase)
		defer engine.Close()
		err = spinner.Run()
	}
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	state := engine.Snapshot()
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	return writeDetail(cmd, app, state, maxTodos)
}

func writeDetail(cmd *cobra.Command, app *app, state application.DetailState, maxTodos int) error {
	rendered, err := detail.Render(state, detail.RenderOptions{
		Now:      app.now(),
		MaxTodos: maxTodos,
	})
	if err != nil {
		return fmt.Errorf("render conversation: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
