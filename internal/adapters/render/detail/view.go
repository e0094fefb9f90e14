package detail

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/convtree/internal/application"
	"github.com/bnema/convtree/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// MaxTodos caps the todo list; zero shows every item.
	MaxTodos int
}

const previewWidth = 72

func renderView(state application.DetailState, opts RenderOptions, s styles) string {
	conversation := state.Conversation
	title := strings.TrimSpace(conversation.Title)
	if title == "" {
		title = string(conversation.ID)
	}

	lines := []string{
		s.title.Render(title),
		s.header.Render(headerLine(state)),
	}
	if status := statusLine(conversation, s); status != "" {
		lines = append(lines, status)
	}
	if state.Err != nil || state.Error != "" {
		message := state.Error
		if message == "" {
			message = state.Err.Error()
		}
		lines = append(lines, s.warning.Render("error: "+message))
	}

	lines = append(lines,
		s.section.Render(renderParticipants(state, s)),
		s.section.Render(renderLatestReply(state, opts, s)),
		s.section.Render(renderTodos(state, opts, s)),
		s.section.Render(renderDelegations(state, opts, s)),
	)
	if len(state.ReferencedReports) > 0 {
		lines = append(lines, s.section.Render(renderReports(state.ReferencedReports, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(state application.DetailState) string {
	parts := []string{
		fmt.Sprintf("id: %s", state.Conversation.ID),
		fmt.Sprintf("state: %s", state.State),
	}
	if state.Runtime != "" {
		parts = append(parts, "runtime: "+state.Runtime)
	}
	if state.IsLoading {
		parts = append(parts, "loading…")
	}
	return strings.Join(parts, "  ")
}

func statusLine(conversation domain.Conversation, s styles) string {
	var parts []string
	if conversation.IsActive {
		parts = append(parts, s.active.Render("● active"))
	}
	if conversation.StatusLabel != "" {
		parts = append(parts, s.status.Render(conversation.StatusLabel))
	}
	if conversation.CurrentActivity != "" {
		parts = append(parts, s.meta.Render(conversation.CurrentActivity))
	}
	return strings.Join(parts, " · ")
}

func renderParticipants(state application.DetailState, s styles) string {
	lines := []string{s.heading.Render(fmt.Sprintf("Participants (%d)", len(state.Participants)))}

	if state.Recipient != nil {
		lines = append(lines, s.detail.Render("to: ")+s.name.Render(state.Recipient.Name))
	}
	if len(state.OtherParticipants) > 0 {
		names := make([]string, 0, len(state.OtherParticipants))
		for _, participant := range state.OtherParticipants {
			names = append(names, participant.Name)
		}
		lines = append(lines, s.detail.Render("also: "+strings.Join(names, ", ")))
	}
	if len(lines) == 1 {
		lines = append(lines, s.empty.Render("No other participants."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderLatestReply(state application.DetailState, opts RenderOptions, s styles) string {
	lines := []string{s.heading.Render("Latest reply")}
	if state.LatestReply == nil {
		lines = append(lines, s.empty.Render("No replies yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	reply := state.LatestReply
	lines = append(lines,
		s.detail.Render(truncate(firstLine(reply.Content), previewWidth)),
		s.meta.Render(formatAgo(reply.CreatedAt, opts.Now)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTodos(state application.DetailState, opts RenderOptions, s styles) string {
	stats := state.TodoStats
	header := s.heading.Render("Todos")
	if !stats.HasTodos() {
		return lipgloss.JoinVertical(lipgloss.Left, header, s.empty.Render("No todos."))
	}

	summary := lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderProgressBar(stats.Completed, stats.Total, 24, s),
		" ",
		s.detail.Render(fmt.Sprintf("%d/%d done", stats.Completed, stats.Total)),
	)
	lines := []string{header, summary}

	items := state.TodoState.Items
	limit := len(items)
	if opts.MaxTodos > 0 && opts.MaxTodos < limit {
		limit = opts.MaxTodos
	}
	for _, item := range items[:limit] {
		lines = append(lines, todoLine(item, s))
	}
	if hidden := len(items) - limit; hidden > 0 {
		lines = append(lines, s.empty.Render(fmt.Sprintf("… %d more", hidden)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func todoLine(item domain.TodoItem, s styles) string {
	switch item.Status {
	case domain.TodoDone:
		return s.todoDone.Render("[x] " + item.Title)
	case domain.TodoInProgress:
		label := item.Title
		if item.Description != "" {
			label = item.Description
		}
		return s.todoActive.Render("[>] " + label)
	case domain.TodoSkipped:
		line := "[-] " + item.Title
		if item.SkipReason != "" {
			line += " (" + item.SkipReason + ")"
		}
		return s.todoDone.Render(line)
	default:
		return s.todoOpen.Render("[ ] " + item.Title)
	}
}

func renderDelegations(state application.DetailState, opts RenderOptions, s styles) string {
	lines := []string{s.heading.Render(fmt.Sprintf("Delegations (%d)", len(state.Delegations)))}
	if len(state.Delegations) == 0 {
		lines = append(lines, s.empty.Render("No delegations."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, item := range state.Delegations {
		head := s.name.Render("→ "+item.RecipientName) + " " + s.meta.Render(formatAgo(item.Timestamp, opts.Now))
		if item.TodoStats != nil {
			head += " " + s.detail.Render(fmt.Sprintf("[%d/%d]", item.TodoStats.Completed, item.TodoStats.Total))
		}
		lines = append(lines, head)
		if preview := truncate(firstLine(item.Preview), previewWidth); preview != "" {
			lines = append(lines, s.detail.Render("  "+preview))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderReports(reports []domain.ReferencedReportItem, s styles) string {
	lines := []string{s.heading.Render(fmt.Sprintf("Reports (%d)", len(reports)))}
	for _, report := range reports {
		line := s.detail.Render("• " + report.Title)
		if report.Report == nil {
			line += " " + s.empty.Render("(unresolved)")
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProgressBar(completed, total, width int, s styles) string {
	if width <= 0 || total <= 0 {
		return ""
	}

	fraction := float64(completed) / float64(total)
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func formatAgo(at, now time.Time) string {
	if at.IsZero() {
		return "unknown time"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return at.Format("02 Jan 15:04")
	}
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}
