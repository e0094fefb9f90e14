package todo

import (
	"testing"

	"github.com/bnema/convtree/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(id, tool, args string) domain.Message {
	return domain.Message{ID: id, ToolName: tool, ToolArgs: args}
}

func TestParserLatestWriteReplacesList(t *testing.T) {
	t.Parallel()

	state := NewParser(nil).Parse([]domain.Message{
		write("m1", "todo_write", `{"todos":[{"content":"old","status":"done"}]}`),
		{ID: "m2", Content: "plain reply"},
		write("m3", "TODO_WRITE", `{"todos":[
			{"id":"t-a","content":"Write tests","status":"completed"},
			{"title":"Ship","status":"in_progress","activeForm":"Shipping"},
			{"content":"Docs","status":"skipped","skip_reason":"later"},
			{"content":"","status":"done"},
			{"content":"Review","status":"whatever"}
		]}`),
	})

	require.Len(t, state.Items, 4)
	assert.Equal(t, domain.TodoItem{ID: "t-a", Title: "Write tests", Status: domain.TodoDone}, state.Items[0])
	assert.Equal(t, domain.TodoItem{ID: "todo-0", Title: "Ship", Description: "Shipping", Status: domain.TodoInProgress}, state.Items[1])
	assert.Equal(t, domain.TodoItem{ID: "todo-1", Title: "Docs", Status: domain.TodoSkipped, SkipReason: "later"}, state.Items[2])
	assert.Equal(t, domain.TodoPending, state.Items[3].Status)

	assert.Equal(t, 1, state.CompletedCount())
	item, ok := state.InProgressItem()
	require.True(t, ok)
	assert.Equal(t, "Ship", item.Title)
}

func TestParserAcceptsItemsAlias(t *testing.T) {
	t.Parallel()

	state := NewParser(nil).Parse([]domain.Message{
		write("m1", "mcp__tenex__todo_write", `{"items":[{"content":"A"},{"content":"B","status":"done"}]}`),
	})

	require.Len(t, state.Items, 2)
	assert.Equal(t, domain.TodoPending, state.Items[0].Status)
	assert.Equal(t, 1, state.CompletedCount())
}

func TestParserSkipsMalformedAndForeignCalls(t *testing.T) {
	t.Parallel()

	state := NewParser(nil).Parse([]domain.Message{
		write("m1", "todowrite", `{"todos":[{"content":"kept"}]}`),
		write("m2", "todo_write", `{not json`),
		write("m3", "delegate", `{"todos":[{"content":"ignored"}]}`),
		write("m4", "todo_write", `{"other":true}`),
	})

	require.Len(t, state.Items, 1)
	assert.Equal(t, "kept", state.Items[0].Title)
}

func TestParserEmptyWriteClearsList(t *testing.T) {
	t.Parallel()

	state := NewParser(nil).Parse([]domain.Message{
		write("m1", "todo_write", `{"todos":[{"content":"A"}]}`),
		write("m2", "todo_write", `{"todos":[]}`),
	})

	assert.False(t, state.HasTodos())
}
