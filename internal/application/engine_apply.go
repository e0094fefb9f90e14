package application

import (
	"context"
	"slices"

	"github.com/bnema/convtree/internal/domain"
	"go.uber.org/zap"
)

// ApplyOwnMessages replaces the root's messages. Latest reply and own todo
// state update inline; everything else waits for the scheduled pass.
func (e *Engine) ApplyOwnMessages(messages []domain.Message) {
	e.mu.Lock()
	if domain.MessagesEqual(e.view.Messages, messages) {
		e.mu.Unlock()
		return
	}
	e.setOwnMessagesLocked(messages)
	state := e.publishLocked()
	e.mu.Unlock()

	e.notify(state)
	e.scheduleRecompute()
}

// ApplyConversations takes a full conversation snapshot. The root's status
// fields are refreshed and every per-descendant cache is pruned to the new
// descendant set.
func (e *Engine) ApplyConversations(conversations []domain.Conversation) {
	index := NewTreeIndex(conversations)

	e.mu.Lock()
	changed := false
	if root, ok := index.Conversation(e.rootID); ok && !root.Equal(e.view.Conversation) {
		e.view.Conversation = root.Clone()
		changed = true
	}

	ids := index.DescendantIDs(e.rootID)
	descendants := make(map[domain.ConversationID]domain.Conversation, len(ids))
	for id := range ids {
		if conversation, ok := index.Conversation(id); ok {
			descendants[id] = conversation
		}
	}
	if !sameConversations(e.descendants, descendants) {
		changed = true
	}

	e.descendants = descendants
	e.tree = index
	e.view.Children = index.DirectChildren(e.rootID)
	e.pruneLocked()

	var missing []domain.ConversationID
	if e.loadedOnce {
		for id := range descendants {
			if _, cached := e.descendantMessages[id]; cached {
				continue
			}
			if _, pending := e.fetching[id]; pending {
				continue
			}
			e.fetching[id] = struct{}{}
			missing = append(missing, id)
		}
	}
	state := e.publishLocked()
	e.mu.Unlock()

	e.notify(state)
	if changed {
		e.scheduleRecompute()
	}
	for _, id := range missing {
		e.fetchDescendantMessages(id)
	}
}

// ApplyDescendantMessages replaces cached messages of tracked descendants
// whose content changed. Untracked ids are ignored.
func (e *Engine) ApplyDescendantMessages(messages map[domain.ConversationID][]domain.Message) {
	e.mu.Lock()
	changed := false
	for id, incoming := range messages {
		if _, tracked := e.descendants[id]; !tracked {
			continue
		}
		if current, ok := e.descendantMessages[id]; ok && domain.MessagesEqual(current, incoming) {
			continue
		}
		e.descendantMessages[id] = domain.CloneMessages(incoming)
		e.dirty[id] = struct{}{}
		changed = true
	}
	e.mu.Unlock()

	if changed {
		e.scheduleRecompute()
	}
}

func (e *Engine) ApplyReports(reports []domain.Report) {
	e.mu.Lock()
	e.reportSnapshot = slices.Clone(reports)
	e.mu.Unlock()

	e.scheduleRecompute()
}

func (e *Engine) fetchDescendantMessages(id domain.ConversationID) {
	started := e.bg.Go(func(ctx context.Context) {
		defer func() {
			e.mu.Lock()
			delete(e.fetching, id)
			e.mu.Unlock()
		}()

		messages, err := e.store.Messages(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				e.metrics.FetchFailed("descendant_messages")
				e.logger.Warn("background message fetch failed",
					zap.String("descendant", string(id)), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		if messages == nil {
			messages = []domain.Message{}
		}
		e.ApplyDescendantMessages(map[domain.ConversationID][]domain.Message{id: messages})
	})

	if !started {
		e.mu.Lock()
		delete(e.fetching, id)
		e.mu.Unlock()
	}
}

func (e *Engine) setOwnMessagesLocked(messages []domain.Message) {
	e.view.Messages = domain.CloneMessages(messages)
	e.view.LatestReply = latestReply(e.view.Messages)
	e.view.TodoState = e.todos.Parse(e.view.Messages)
}

// pruneLocked drops every per-descendant cache entry outside the current
// descendant set, profile names included.
func (e *Engine) pruneLocked() {
	for id := range e.descendantMessages {
		if _, ok := e.descendants[id]; !ok {
			delete(e.descendantMessages, id)
		}
	}
	for id := range e.todoCache {
		if _, ok := e.descendants[id]; !ok {
			delete(e.todoCache, id)
		}
	}
	for id := range e.dirty {
		if _, ok := e.descendants[id]; !ok {
			delete(e.dirty, id)
		}
	}

	keep := make(map[string]struct{}, 2*len(e.descendants)+2)
	addPubkeys := func(conversation domain.Conversation) {
		if conversation.Pubkey != "" {
			keep[conversation.Pubkey] = struct{}{}
		}
		if recipient, ok := conversation.FirstRecipient(); ok {
			keep[recipient] = struct{}{}
		}
	}
	addPubkeys(e.view.Conversation)
	for _, conversation := range e.descendants {
		addPubkeys(conversation)
	}
	e.names.Retain(keep)
}

func latestReply(messages []domain.Message) *domain.Message {
	reply, ok := domain.LatestReply(messages)
	if !ok {
		return nil
	}
	return &reply
}

func sameConversations(a, b map[domain.ConversationID]domain.Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	for id, conversation := range a {
		other, ok := b[id]
		if !ok || !conversation.Equal(other) {
			return false
		}
	}
	return true
}
