package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/convtree/internal/adapters/render/detail"
	"github.com/bnema/convtree/internal/adapters/watch"
	"github.com/bnema/convtree/internal/application"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(app *app) *cobra.Command {
	var maxTodos int

	cmd := &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Show a conversation tree and re-render it as the store changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app, args[0], maxTodos)
		},
	}

	cmd.Flags().IntVar(&maxTodos, "max-todos", 10, "todo items to list (0 lists all)")

	return cmd
}

func runWatch(cmd *cobra.Command, app *app, id string, maxTodos int) (err error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

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

	source, err := watch.NewFileSource(store.Path(), store, app.logger, watch.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("wire file source: %w", err)
	}

	live := detail.NewLive(
		application.DetailState{Conversation: conversation},
		detail.RenderOptions{MaxTodos: maxTodos},
		tea.WithContext(ctx),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	engine := app.newEngine(conversation, store, live.Publish)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := engine.LoadData(groupCtx); err != nil {
			app.logger.Warn("initial load failed", zap.String("conversation", id), zap.Error(err))
		}

		if reports, err := store.Reports(groupCtx); err != nil {
			app.logger.Warn("reports unavailable, references stay unresolved", zap.Error(err))
		} else {
			engine.ApplyReports(reports)
		}

		if err := engine.Bind(source); err != nil {
			return err
		}

		engine.RunMetadataRefresh(groupCtx, app.cfg.MetadataRefresh)
		return nil
	})

	runErr := live.Run()

	cancel()
	groupErr := group.Wait()
	engine.Close()
	stopErr := source.Stop()

	if errors.Is(runErr, tea.ErrProgramKilled) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	return errors.Join(runErr, groupErr, stopErr)
}
