package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func todoState(statuses ...TodoStatus) TodoState {
	items := make([]TodoItem, 0, len(statuses))
	for i, status := range statuses {
		items = append(items, TodoItem{ID: string(rune('a' + i)), Title: "item", Status: status})
	}

	return TodoState{Items: items}
}

func TestTodoStateCounts(t *testing.T) {
	state := todoState(TodoDone, TodoSkipped, TodoInProgress, TodoPending)

	assert.True(t, state.HasTodos())
	assert.Equal(t, 1, state.CompletedCount())

	item, ok := state.InProgressItem()
	assert.True(t, ok)
	assert.Equal(t, TodoInProgress, item.Status)

	assert.False(t, TodoState{}.HasTodos())
}

func TestAggregateTodoStatsAddIsOrderIndependent(t *testing.T) {
	states := []TodoState{
		todoState(TodoDone, TodoPending),
		todoState(TodoDone, TodoDone, TodoDone),
		{},
		todoState(TodoSkipped),
	}

	forward := AggregateTodoStats{}
	for _, state := range states {
		forward = forward.Add(state)
	}

	backward := AggregateTodoStats{}
	for i := len(states) - 1; i >= 0; i-- {
		backward = backward.Add(states[i])
	}

	grouped := states[0].Stats().Merge(states[1].Stats().Merge(states[2].Stats().Merge(states[3].Stats())))

	assert.Equal(t, AggregateTodoStats{Completed: 4, Total: 6}, forward)
	assert.Equal(t, forward, backward)
	assert.Equal(t, forward, grouped)
	assert.LessOrEqual(t, forward.Completed, forward.Total)
}

func TestAggregateTodoStatsIsComplete(t *testing.T) {
	tests := []struct {
		name  string
		stats AggregateTodoStats
		want  bool
	}{
		{name: "empty is never complete", stats: AggregateTodoStats{}, want: false},
		{name: "partial", stats: AggregateTodoStats{Completed: 1, Total: 2}, want: false},
		{name: "all done", stats: AggregateTodoStats{Completed: 2, Total: 2}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stats.IsComplete())
		})
	}
}
