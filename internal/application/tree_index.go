package application

import (
	"sort"

	"github.com/bnema/convtree/internal/domain"
)

// TreeIndex is a parent -> children view over a flat conversation snapshot.
type TreeIndex struct {
	byID     map[domain.ConversationID]domain.Conversation
	children map[domain.ConversationID][]domain.ConversationID
}

func NewTreeIndex(conversations []domain.Conversation) *TreeIndex {
	index := &TreeIndex{
		byID:     make(map[domain.ConversationID]domain.Conversation, len(conversations)),
		children: make(map[domain.ConversationID][]domain.ConversationID),
	}

	for _, conversation := range conversations {
		if conversation.ID == "" {
			continue
		}
		index.byID[conversation.ID] = conversation.Clone()
	}

	for id, conversation := range index.byID {
		if conversation.IsRoot() || conversation.ParentID == id {
			continue
		}
		index.children[conversation.ParentID] = append(index.children[conversation.ParentID], id)
	}

	for parentID := range index.children {
		sortIDs(index.children[parentID])
	}

	return index
}

func (t *TreeIndex) Conversation(id domain.ConversationID) (domain.Conversation, bool) {
	conversation, ok := t.byID[id]
	return conversation, ok
}

func (t *TreeIndex) Children(id domain.ConversationID) []domain.ConversationID {
	return t.children[id]
}

// DescendantIDs walks every conversation reachable from root. Each id is
// expanded at most once, so cycles and duplicate edges terminate.
func (t *TreeIndex) DescendantIDs(root domain.ConversationID) map[domain.ConversationID]struct{} {
	visited := map[domain.ConversationID]struct{}{root: {}}
	descendants := make(map[domain.ConversationID]struct{})

	stack := append([]domain.ConversationID(nil), t.children[root]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		descendants[id] = struct{}{}

		stack = append(stack, t.children[id]...)
	}

	return descendants
}

// DirectChildren returns root's children, most recently active first.
func (t *TreeIndex) DirectChildren(root domain.ConversationID) []domain.Conversation {
	ids := t.children[root]
	children := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		children = append(children, t.byID[id])
	}

	SortByEffectiveActivity(children)
	return children
}

func SortByEffectiveActivity(conversations []domain.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		left, right := conversations[i], conversations[j]
		if !left.EffectiveLastActivity.Equal(right.EffectiveLastActivity) {
			return left.EffectiveLastActivity.After(right.EffectiveLastActivity)
		}
		return left.ID < right.ID
	})
}

func sortIDs(ids []domain.ConversationID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
