package application

import (
	"sort"
	"strings"
	"time"

	"github.com/bnema/convtree/internal/domain"
)

var delegationTools = map[string]struct{}{
	"delegate":              {},
	"delegate_external":     {},
	"delegate_crossproject": {},
	"delegate_followup":     {},
}

func IsDelegationTool(toolName string) bool {
	_, ok := delegationTools[strings.ToLower(toolName)]
	return ok
}

type nameLookup interface {
	Lookup(pubkey, fallback string) string
}

// DelegationExtractor derives the delegation list. ConversationID is the dedup key.
type DelegationExtractor struct {
	names nameLookup
}

func NewDelegationExtractor(names nameLookup) DelegationExtractor {
	return DelegationExtractor{names: names}
}

func (x DelegationExtractor) Extract(
	messages []domain.Message,
	children []domain.Conversation,
	subtreeStats func(domain.ConversationID) domain.AggregateTodoStats,
) []domain.DelegationItem {
	childByID := make(map[domain.ConversationID]domain.Conversation, len(children))
	for _, child := range children {
		childByID[child.ID] = child
	}

	seen := make(map[domain.ConversationID]struct{}, len(children))
	items := make([]domain.DelegationItem, 0, len(children))

	for _, message := range messages {
		if !IsDelegationTool(message.ToolName) {
			continue
		}

		for _, target := range message.QTags {
			child, ok := childByID[target]
			if !ok {
				continue
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}

			items = append(items, x.item(child, child.Title, message.CreatedAt, subtreeStats))
		}
	}

	// Children created without a delegation tool call still show up.
	for _, child := range children {
		if _, dup := seen[child.ID]; dup {
			continue
		}
		seen[child.ID] = struct{}{}

		items = append(items, x.item(child, child.Preview(), child.LastActivity, subtreeStats))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ConversationID < items[j].ConversationID
	})

	return items
}

func (x DelegationExtractor) item(
	child domain.Conversation,
	preview string,
	timestamp time.Time,
	subtreeStats func(domain.ConversationID) domain.AggregateTodoStats,
) domain.DelegationItem {
	recipient := child.RecipientPubkey()

	item := domain.DelegationItem{
		ID:              string(child.ID),
		RecipientName:   x.recipientName(child, recipient),
		RecipientPubkey: recipient,
		Preview:         preview,
		ConversationID:  child.ID,
		Timestamp:       timestamp,
	}

	if subtreeStats != nil {
		if stats := subtreeStats(child.ID); stats.HasTodos() {
			item.TodoStats = &stats
		}
	}

	return item
}

func (x DelegationExtractor) recipientName(child domain.Conversation, pubkey string) string {
	fallback := pubkey
	if pubkey == child.Pubkey && child.Author != "" {
		fallback = child.Author
	}

	if x.names == nil {
		return fallback
	}
	return x.names.Lookup(pubkey, fallback)
}
