package application

import (
	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"
)

// TodoAggregator parses through an external parser and sums pre-parsed states.
type TodoAggregator struct {
	parser ports.TodoParser
}

func NewTodoAggregator(parser ports.TodoParser) TodoAggregator {
	return TodoAggregator{parser: parser}
}

func (a TodoAggregator) Parse(messages []domain.Message) domain.TodoState {
	if a.parser == nil || len(messages) == 0 {
		return domain.TodoState{}
	}

	return a.parser.Parse(messages)
}

// Total sums own plus every cached descendant state.
func (a TodoAggregator) Total(own domain.TodoState, descendants map[domain.ConversationID]domain.TodoState) domain.AggregateTodoStats {
	stats := own.Stats()
	for _, state := range descendants {
		stats = stats.Add(state)
	}

	return stats
}

// Subtree sums the cached states of root and everything below it. Nothing is re-parsed.
func (a TodoAggregator) Subtree(root domain.ConversationID, children func(domain.ConversationID) []domain.ConversationID, states map[domain.ConversationID]domain.TodoState) domain.AggregateTodoStats {
	visited := make(map[domain.ConversationID]struct{})

	var walk func(id domain.ConversationID) domain.AggregateTodoStats
	walk = func(id domain.ConversationID) domain.AggregateTodoStats {
		if _, seen := visited[id]; seen {
			return domain.AggregateTodoStats{}
		}
		visited[id] = struct{}{}

		stats := states[id].Stats()
		for _, child := range children(id) {
			stats = stats.Merge(walk(child))
		}
		return stats
	}

	return walk(root)
}
