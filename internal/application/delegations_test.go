package application

import (
	"testing"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticNames map[string]string

func (n staticNames) Lookup(pubkey, fallback string) string {
	if name, ok := n[pubkey]; ok {
		return name
	}
	return fallback
}

func TestDelegationExtractorSingleDelegation(t *testing.T) {
	t.Parallel()

	sent := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	items := NewDelegationExtractor(staticNames{"pk1": "Coder"}).Extract(
		[]domain.Message{{ID: "m1", ToolName: "delegate", QTags: []domain.ConversationID{"childA"}, CreatedAt: sent}},
		[]domain.Conversation{{ID: "childA", Title: "Fix bug", PTags: []string{"pk1"}, ParentID: "root"}},
		nil,
	)

	require.Len(t, items, 1)
	assert.Equal(t, domain.ConversationID("childA"), items[0].ConversationID)
	assert.Equal(t, "Coder", items[0].RecipientName)
	assert.Equal(t, "pk1", items[0].RecipientPubkey)
	assert.Equal(t, "Fix bug", items[0].Preview)
	assert.Equal(t, sent, items[0].Timestamp)
	assert.Nil(t, items[0].TodoStats)
}

func TestDelegationExtractorDedupesAndAddsUndelegatedChildren(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	messages := []domain.Message{
		{ID: "m1", ToolName: "delegate", QTags: []domain.ConversationID{"a", "a", "ghost"}, CreatedAt: base},
		{ID: "m2", ToolName: "delegate_external", QTags: []domain.ConversationID{"a"}, CreatedAt: base.Add(time.Minute)},
		{ID: "m3", ToolName: "fs_read", QTags: []domain.ConversationID{"b"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	children := []domain.Conversation{
		{ID: "a", Title: "Task A", Pubkey: "agent-a", Author: "agent-a-name"},
		{ID: "b", Title: "Task B", Summary: "B summary", Pubkey: "agent-b", LastActivity: base.Add(time.Hour)},
	}

	items := NewDelegationExtractor(nil).Extract(messages, children, nil)

	require.Len(t, items, 2)
	seen := map[domain.ConversationID]int{}
	for _, item := range items {
		seen[item.ConversationID]++
	}
	assert.Equal(t, map[domain.ConversationID]int{"a": 1, "b": 1}, seen)

	assert.Equal(t, domain.ConversationID("b"), items[0].ConversationID, "sorted by timestamp descending")
	assert.Equal(t, "B summary", items[0].Preview)
	assert.Equal(t, base.Add(time.Hour), items[0].Timestamp)
	assert.Equal(t, "agent-b", items[0].RecipientName, "falls back to raw pubkey")

	assert.Equal(t, "Task A", items[1].Preview)
	assert.Equal(t, base, items[1].Timestamp, "first delegation message wins")
	assert.Equal(t, "agent-a-name", items[1].RecipientName, "falls back to the author on the entity")
}

func TestDelegationExtractorAttachesSubtreeTodoStats(t *testing.T) {
	t.Parallel()

	children := []domain.Conversation{{ID: "a"}, {ID: "b"}}
	stats := map[domain.ConversationID]domain.AggregateTodoStats{
		"a": {Completed: 1, Total: 3},
	}

	items := NewDelegationExtractor(nil).Extract(nil, children, func(id domain.ConversationID) domain.AggregateTodoStats {
		return stats[id]
	})

	require.Len(t, items, 2)
	for _, item := range items {
		switch item.ConversationID {
		case "a":
			require.NotNil(t, item.TodoStats)
			assert.Equal(t, domain.AggregateTodoStats{Completed: 1, Total: 3}, *item.TodoStats)
		case "b":
			assert.Nil(t, item.TodoStats)
		}
	}
}

func TestIsDelegationTool(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDelegationTool("delegate"))
	assert.True(t, IsDelegationTool("Delegate_Followup"))
	assert.False(t, IsDelegationTool("todo_write"))
	assert.False(t, IsDelegationTool(""))
}
