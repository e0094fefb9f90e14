package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type descendantFetch struct {
	conversations []domain.Conversation
	messages      map[domain.ConversationID][]domain.Message
	runtimeMs     uint64
	hasRuntime    bool
}

// LoadData runs both load phases. Own messages are published as soon as they
// arrive; descendants are committed together with one full recompute pass.
// A call while a load is in flight is a no-op. Cancellation returns nil and
// leaves whatever phase 1 committed; fetch failures are returned and kept in
// DetailState.Err.
func (e *Engine) LoadData(ctx context.Context) error {
	started := e.clock.Now()

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return nil
	}
	e.loading = true
	e.view.IsLoading = true
	e.view.State = StateLoadingOwnMessages
	e.view.Err = nil
	e.view.Error = ""
	state := e.publishLocked()
	e.mu.Unlock()
	e.notify(state)

	err := e.load(ctx)

	e.mu.Lock()
	e.loading = false
	e.view.IsLoading = false
	switch {
	case err == nil:
		e.loadedOnce = true
		e.view.State = StateReady
	case ctx.Err() != nil:
		e.logger.Debug("load cancelled", zap.Error(err))
		e.view.State = e.settledStateLocked()
		err = nil
	default:
		e.view.Err = err
		e.view.State = e.settledStateLocked()
	}
	state = e.publishLocked()
	e.mu.Unlock()
	e.notify(state)

	if err == nil && ctx.Err() == nil {
		e.metrics.LoadCompleted(e.clock.Now().Sub(started))
	}

	return err
}

func (e *Engine) load(ctx context.Context) error {
	messages, err := e.store.Messages(ctx, e.rootID)
	if err != nil {
		return e.fetchError(ctx, "own_messages", fmt.Errorf("fetch own messages: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.setOwnMessagesLocked(messages)
	e.view.State = StateLoadingDescendants
	state := e.publishLocked()
	e.mu.Unlock()
	e.notify(state)
	e.logger.Debug("own messages applied", zap.Int("messages", len(messages)))

	fetched, err := e.fetchDescendants(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.view.State = StateRecomputing
	e.commitDescendantsLocked(fetched)
	e.recomputeLocked()
	e.mu.Unlock()

	e.logger.Debug("descendants committed",
		zap.Int("descendants", len(fetched.conversations)),
		zap.Int("with_messages", len(fetched.messages)))

	return nil
}

func (e *Engine) fetchDescendants(ctx context.Context) (descendantFetch, error) {
	ids, err := e.store.DescendantIDs(ctx, e.rootID)
	if err != nil {
		return descendantFetch{}, e.fetchError(ctx, "descendant_ids", fmt.Errorf("fetch descendant ids: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return descendantFetch{}, err
	}

	var conversations []domain.Conversation
	if len(ids) > 0 {
		conversations, err = e.store.ConversationsByIDs(ctx, ids)
		if err != nil {
			return descendantFetch{}, e.fetchError(ctx, "descendant_conversations", fmt.Errorf("fetch descendant conversations: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return descendantFetch{}, err
		}
	}

	kept := conversations[:0:0]
	for _, conversation := range conversations {
		if conversation.ID == "" || conversation.ID == e.rootID {
			continue
		}
		kept = append(kept, conversation)
	}

	fetched := descendantFetch{conversations: kept}
	results := make([][]domain.Message, len(kept))

	group, groupCtx := errgroup.WithContext(ctx)
	if e.fanout > 0 {
		group.SetLimit(e.fanout)
	}

	for i, conversation := range kept {
		group.Go(func() error {
			messages, err := e.store.Messages(groupCtx, conversation.ID)
			if err != nil {
				return fmt.Errorf("fetch messages for %s: %w", conversation.ID, err)
			}
			results[i] = messages
			return nil
		})
	}

	if e.runtime != nil {
		group.Go(func() error {
			ms, err := e.runtime.ConversationRuntimeMs(groupCtx, e.rootID)
			if err != nil {
				if groupCtx.Err() == nil {
					e.metrics.FetchFailed("runtime")
					e.logger.Warn("runtime lookup failed, keeping previous value", zap.Error(err))
				}
				return nil
			}
			fetched.runtimeMs, fetched.hasRuntime = ms, true
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return descendantFetch{}, e.fetchError(ctx, "descendant_messages", err)
	}

	fetched.messages = make(map[domain.ConversationID][]domain.Message, len(kept))
	for i, conversation := range kept {
		fetched.messages[conversation.ID] = results[i]
	}

	return fetched, nil
}

func (e *Engine) commitDescendantsLocked(fetched descendantFetch) {
	descendants := make(map[domain.ConversationID]domain.Conversation, len(fetched.conversations))
	all := make([]domain.Conversation, 0, len(fetched.conversations)+1)
	all = append(all, e.view.Conversation)
	for _, conversation := range fetched.conversations {
		descendants[conversation.ID] = conversation.Clone()
		all = append(all, conversation)
	}

	e.descendants = descendants
	e.tree = NewTreeIndex(all)
	e.view.Children = e.tree.DirectChildren(e.rootID)

	e.descendantMessages = make(map[domain.ConversationID][]domain.Message, len(fetched.messages))
	for id, messages := range fetched.messages {
		e.descendantMessages[id] = domain.CloneMessages(messages)
		e.dirty[id] = struct{}{}
	}
	e.pruneLocked()

	if fetched.hasRuntime {
		e.view.Runtime = domain.FormatRuntimeMillis(fetched.runtimeMs)
	}
}

// RefreshRuntime re-reads the elapsed runtime. Failures keep the previous value.
func (e *Engine) RefreshRuntime(ctx context.Context) error {
	if e.runtime == nil {
		return nil
	}

	ms, err := e.runtime.ConversationRuntimeMs(ctx, e.rootID)
	if err != nil {
		return e.fetchError(ctx, "runtime", fmt.Errorf("fetch runtime: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.view.Runtime = domain.FormatRuntimeMillis(ms)
	state := e.publishLocked()
	e.mu.Unlock()
	e.notify(state)

	return nil
}

// RefreshMetadata re-reads the conversation set and applies it as a snapshot.
func (e *Engine) RefreshMetadata(ctx context.Context) error {
	conversations, err := e.store.AllConversations(ctx, domain.ConversationFilter{RootID: e.rootID})
	if err != nil {
		return e.fetchError(ctx, "all_conversations", fmt.Errorf("fetch conversations: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.ApplyConversations(conversations)
	return nil
}

// RunMetadataRefresh calls RefreshMetadata and RefreshRuntime every interval
// until ctx is done.
func (e *Engine) RunMetadataRefresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.RefreshMetadata(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("metadata refresh failed", zap.Error(err))
			}
			if err := e.RefreshRuntime(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("runtime refresh failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) fetchError(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil {
		return err
	}

	e.metrics.FetchFailed(operation)
	e.logger.Warn("fetch failed", zap.String("operation", operation), zap.Error(err))
	return err
}

func (e *Engine) settledStateLocked() LoadState {
	if e.loadedOnce {
		return StateReady
	}
	return StateIdle
}
