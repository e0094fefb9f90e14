package application

import (
	"testing"

	"github.com/bnema/convtree/internal/domain"
	"github.com/stretchr/testify/assert"
)

type countingTodoParser struct {
	calls int
}

func (p *countingTodoParser) Parse(messages []domain.Message) domain.TodoState {
	p.calls++

	var state domain.TodoState
	for _, message := range messages {
		if message.ToolName != "todo_write" {
			continue
		}
		status := domain.TodoPending
		if message.Content == "done" {
			status = domain.TodoDone
		}
		state.Items = append(state.Items, domain.TodoItem{ID: message.ID, Title: message.ID, Status: status})
	}
	return state
}

func todoMessage(id string, done bool) domain.Message {
	content := "open"
	if done {
		content = "done"
	}
	return domain.Message{ID: id, ToolName: "todo_write", Content: content}
}

func TestTodoAggregatorTotal(t *testing.T) {
	t.Parallel()

	aggregator := NewTodoAggregator(&countingTodoParser{})
	own := aggregator.Parse([]domain.Message{todoMessage("o1", true), todoMessage("o2", false)})

	stats := aggregator.Total(own, map[domain.ConversationID]domain.TodoState{
		"a": {Items: []domain.TodoItem{{Status: domain.TodoDone}}},
		"b": {Items: []domain.TodoItem{{Status: domain.TodoPending}, {Status: domain.TodoSkipped}}},
	})

	assert.Equal(t, domain.AggregateTodoStats{Completed: 2, Total: 5}, stats)
}

func TestTodoAggregatorParseWithoutParserIsEmpty(t *testing.T) {
	t.Parallel()

	state := NewTodoAggregator(nil).Parse([]domain.Message{todoMessage("o1", true)})
	assert.False(t, state.HasTodos())
}

func TestTodoAggregatorSubtreeUsesCachedStatesOnly(t *testing.T) {
	t.Parallel()

	parser := &countingTodoParser{}
	aggregator := NewTodoAggregator(parser)
	index := NewTreeIndex([]domain.Conversation{
		{ID: "root"},
		{ID: "a", ParentID: "root"},
		{ID: "a1", ParentID: "a"},
		{ID: "a2", ParentID: "a"},
		{ID: "b", ParentID: "root"},
	})
	states := map[domain.ConversationID]domain.TodoState{
		"a":  {Items: []domain.TodoItem{{Status: domain.TodoDone}}},
		"a1": {Items: []domain.TodoItem{{Status: domain.TodoDone}, {Status: domain.TodoPending}}},
		"a2": {Items: []domain.TodoItem{{Status: domain.TodoInProgress}}},
		"b":  {Items: []domain.TodoItem{{Status: domain.TodoDone}}},
	}

	stats := aggregator.Subtree("a", index.Children, states)

	assert.Equal(t, domain.AggregateTodoStats{Completed: 2, Total: 4}, stats)
	assert.Zero(t, parser.calls)
}

func TestTodoAggregatorSubtreeSurvivesCycles(t *testing.T) {
	t.Parallel()

	index := NewTreeIndex([]domain.Conversation{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
	})
	states := map[domain.ConversationID]domain.TodoState{
		"a": {Items: []domain.TodoItem{{Status: domain.TodoDone}}},
		"b": {Items: []domain.TodoItem{{Status: domain.TodoPending}}},
	}

	stats := NewTodoAggregator(nil).Subtree("a", index.Children, states)
	assert.Equal(t, domain.AggregateTodoStats{Completed: 1, Total: 2}, stats)
}
