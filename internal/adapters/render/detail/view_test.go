package detail

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bnema/convtree/internal/application"
	"github.com/bnema/convtree/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func readyState() application.DetailState {
	reply := domain.Message{ID: "r1", Content: "Release is blocked on QA\nmore detail", CreatedAt: now.Add(-5 * time.Minute)}
	return application.DetailState{
		Conversation: domain.Conversation{
			ID:              "root",
			Title:           "Ship release",
			StatusLabel:     "in review",
			IsActive:        true,
			CurrentActivity: "running tests",
		},
		State:       application.StateReady,
		Runtime:     "1m30s",
		LatestReply: &reply,
		TodoState: domain.TodoState{Items: []domain.TodoItem{
			{ID: "t1", Title: "Write changelog", Status: domain.TodoDone},
			{ID: "t2", Title: "Tag build", Description: "Tagging build", Status: domain.TodoInProgress},
			{ID: "t3", Title: "Docs", Status: domain.TodoSkipped, SkipReason: "next sprint"},
			{ID: "t4", Title: "Announce", Status: domain.TodoPending},
		}},
		TodoStats: domain.AggregateTodoStats{Completed: 3, Total: 6},
		Delegations: []domain.DelegationItem{
			{ID: "a", RecipientName: "Bob", Preview: "Fix bug", ConversationID: "a", Timestamp: now.Add(-2 * time.Hour),
				TodoStats: &domain.AggregateTodoStats{Completed: 1, Total: 2}},
		},
		ReferencedReports: []domain.ReferencedReportItem{
			{Coordinate: "30023:pk:notes", Title: "Release Notes", Slug: "notes", Report: &domain.Report{Slug: "notes"}},
			{Coordinate: "30023:pk:plan", Title: "plan", Slug: "plan"},
		},
		Participants:      []domain.Participant{{Pubkey: "pk-a", Name: "Alice"}, {Pubkey: "pk-b", Name: "Bob"}, {Pubkey: "pk-pm", Name: "Pat"}},
		Recipient:         &domain.Participant{Pubkey: "pk-pm", Name: "Pat"},
		OtherParticipants: []domain.Participant{{Pubkey: "pk-b", Name: "Bob"}},
	}
}

func TestRenderReadyState(t *testing.T) {
	t.Parallel()

	output, err := Render(readyState(), RenderOptions{Now: now})
	require.NoError(t, err)

	assert.Contains(t, output, "Ship release")
	assert.Contains(t, output, "state: ready")
	assert.Contains(t, output, "runtime: 1m30s")
	assert.Contains(t, output, "active")
	assert.Contains(t, output, "in review")
	assert.Contains(t, output, "Participants (3)")
	assert.Contains(t, output, "to: Pat")
	assert.Contains(t, output, "also: Bob")
	assert.Contains(t, output, "Release is blocked on QA")
	assert.NotContains(t, output, "more detail")
	assert.Contains(t, output, "5m ago")
	assert.Contains(t, output, "3/6 done")
	assert.Contains(t, output, "[x] Write changelog")
	assert.Contains(t, output, "[>] Tagging build")
	assert.Contains(t, output, "[-] Docs (next sprint)")
	assert.Contains(t, output, "[ ] Announce")
	assert.Contains(t, output, "Delegations (1)")
	assert.Contains(t, output, "Bob")
	assert.Contains(t, output, "[1/2]")
	assert.Contains(t, output, "2h ago")
	assert.Contains(t, output, "Release Notes")
	assert.Contains(t, output, "(unresolved)")
}

func TestRenderEmptyState(t *testing.T) {
	t.Parallel()

	output, err := Render(application.DetailState{
		Conversation: domain.Conversation{ID: "root"},
		State:        application.StateIdle,
		Err:          errors.New("store offline"),
	}, RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "root")
	assert.Contains(t, output, "error: store offline")
	assert.Contains(t, output, "No replies yet.")
	assert.Contains(t, output, "No todos.")
	assert.Contains(t, output, "No delegations.")
	assert.NotContains(t, output, "Reports")
}

func TestRenderCapsTodoList(t *testing.T) {
	t.Parallel()

	output, err := Render(readyState(), RenderOptions{Now: now, MaxTodos: 2})
	require.NoError(t, err)
	assert.Contains(t, output, "… 2 more")
	assert.NotContains(t, output, "Announce")
}

func TestLiveModelAppliesPublishedState(t *testing.T) {
	t.Parallel()

	m := newDetailModel(application.DetailState{Conversation: domain.Conversation{ID: "root", Title: "Before"}}, RenderOptions{}, func() time.Time { return now }, true)
	assert.Contains(t, m.View(), "Before")

	next := readyState()
	updated, cmd := m.Update(stateMsg{state: next})
	assert.Nil(t, cmd)
	assert.Contains(t, updated.View(), "Ship release")
	assert.Contains(t, updated.View(), "q to quit")

	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestLiveModelFitsTerminalWidth(t *testing.T) {
	t.Parallel()

	m := newDetailModel(readyState(), RenderOptions{}, func() time.Time { return now }, true)
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	assert.Nil(t, cmd)

	for _, line := range strings.Split(updated.View(), "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 20)
	}
}

func TestOneShotModelQuitsAfterFirstFrame(t *testing.T) {
	t.Parallel()

	m := newDetailModel(readyState(), RenderOptions{Now: now}, func() time.Time { return now }, false)
	assert.Empty(t, m.View())

	msg := m.Init()()
	updated, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, updated.View(), "Ship release")
	assert.NotContains(t, updated.View(), "q to quit")
}

func TestFormatAgo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown time", formatAgo(time.Time{}, now))
	assert.Equal(t, "just now", formatAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "59m ago", formatAgo(now.Add(-59*time.Minute), now))
	assert.Equal(t, "01 Mar 12:00", formatAgo(now, now.Add(48*time.Hour)))
}
