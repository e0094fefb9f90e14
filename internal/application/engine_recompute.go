package application

import (
	"sort"

	"github.com/bnema/convtree/internal/domain"
	"go.uber.org/zap"
)

// recomputeLocked runs one full pass over the cached data. It never fetches:
// names come from the non-blocking cache and todos from pre-parsed states.
func (e *Engine) recomputeLocked() {
	started := e.clock.Now()
	root := e.view.Conversation

	e.view.Participants = e.participantsLocked()

	e.view.Recipient = nil
	recipientPubkey, hasRecipient := root.FirstRecipient()
	if hasRecipient {
		e.view.Recipient = &domain.Participant{
			Pubkey: recipientPubkey,
			Name:   e.names.Lookup(recipientPubkey, recipientPubkey),
		}
	}
	others := make([]domain.Participant, 0, len(e.view.Participants))
	for _, participant := range e.view.Participants {
		if participant.Pubkey == root.Pubkey {
			continue
		}
		if hasRecipient && participant.Pubkey == recipientPubkey {
			continue
		}
		others = append(others, participant)
	}
	e.view.OtherParticipants = others

	e.view.LatestReply = latestReply(e.view.Messages)

	reparsed := e.refreshTodoCacheLocked()
	e.view.TodoStats = e.todos.Total(e.view.TodoState, e.todoCache)

	subtree := func(id domain.ConversationID) domain.AggregateTodoStats {
		return e.todos.Subtree(id, e.tree.Children, e.todoCache)
	}
	e.view.Delegations = e.delegations.Extract(e.view.Messages, e.view.Children, subtree)

	e.view.ReferencedReports = e.reports.Resolve(e.view.Messages, e.reportSnapshot)

	elapsed := e.clock.Now().Sub(started)
	e.metrics.RecomputePass(elapsed)
	e.logger.Debug("recompute pass",
		zap.Duration("elapsed", elapsed),
		zap.Int("descendants", len(e.descendants)),
		zap.Int("reparsed", reparsed),
		zap.Int("delegations", len(e.view.Delegations)))
}

// refreshTodoCacheLocked re-parses dirty descendants, or all of them when the
// cache and the message map disagree in size.
func (e *Engine) refreshTodoCacheLocked() int {
	reparsed := 0
	if len(e.todoCache) != len(e.descendantMessages) {
		e.todoCache = make(map[domain.ConversationID]domain.TodoState, len(e.descendantMessages))
		for id, messages := range e.descendantMessages {
			e.todoCache[id] = e.todos.Parse(messages)
			reparsed++
		}
	} else {
		for id := range e.dirty {
			messages, ok := e.descendantMessages[id]
			if !ok {
				continue
			}
			e.todoCache[id] = e.todos.Parse(messages)
			reparsed++
		}
	}
	clear(e.dirty)

	return reparsed
}

func (e *Engine) participantsLocked() []domain.Participant {
	byPubkey := make(map[string]domain.Participant, len(e.descendants)+1)
	add := func(conversation domain.Conversation) {
		if conversation.Pubkey == "" {
			return
		}
		if _, ok := byPubkey[conversation.Pubkey]; ok {
			return
		}
		byPubkey[conversation.Pubkey] = domain.Participant{
			Pubkey: conversation.Pubkey,
			Name:   e.names.Lookup(conversation.Pubkey, conversation.Author),
		}
	}

	add(e.view.Conversation)
	ids := make([]domain.ConversationID, 0, len(e.descendants))
	for id := range e.descendants {
		ids = append(ids, id)
	}
	sortIDs(ids)
	for _, id := range ids {
		add(e.descendants[id])
	}

	participants := make([]domain.Participant, 0, len(byPubkey))
	for _, participant := range byPubkey {
		participants = append(participants, participant)
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Name != participants[j].Name {
			return participants[i].Name < participants[j].Name
		}
		return participants[i].Pubkey < participants[j].Pubkey
	})

	return participants
}
