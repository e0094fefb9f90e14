package todo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"
	"go.uber.org/zap"
)

var writeTools = map[string]struct{}{
	"todo_write":             {},
	"todowrite":              {},
	"mcp__tenex__todo_write": {},
}

// IsTodoWrite reports whether toolName replaces the todo list.
func IsTodoWrite(toolName string) bool {
	_, ok := writeTools[strings.ToLower(toolName)]
	return ok
}

type writeItem struct {
	ID          *string `json:"id"`
	Content     *string `json:"content"`
	Title       *string `json:"title"`
	Status      *string `json:"status"`
	ActiveForm  *string `json:"activeForm"`
	Description *string `json:"description"`
	SkipReason  *string `json:"skip_reason"`
}

type writePayload struct {
	Todos *[]writeItem `json:"todos"`
	Items *[]writeItem `json:"items"`
}

func (p writePayload) list() (*[]writeItem, bool) {
	if p.Todos != nil {
		return p.Todos, true
	}
	if p.Items != nil {
		return p.Items, true
	}
	return nil, false
}

// Parser reads todo_write tool calls. Each call replaces the whole list.
type Parser struct {
	logger *zap.Logger
}

var _ ports.TodoParser = (*Parser)(nil)

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

func (p *Parser) Parse(messages []domain.Message) domain.TodoState {
	var items []domain.TodoItem

	for _, message := range messages {
		if !IsTodoWrite(message.ToolName) {
			continue
		}

		list, err := decodeList(message.ToolArgs)
		if err != nil {
			p.logger.Debug("skipping malformed todo payload", zap.String("message", message.ID), zap.Error(err))
			continue
		}
		if list == nil {
			continue
		}

		items = items[:0:0]
		generated := 0
		for _, entry := range *list {
			title := firstNonNil(entry.Content, entry.Title)
			if title == "" {
				continue
			}

			id := deref(entry.ID)
			if entry.ID == nil {
				id = fmt.Sprintf("todo-%d", generated)
				generated++
			}

			status := domain.TodoPending
			if entry.Status != nil {
				status = parseStatus(*entry.Status)
			}

			items = append(items, domain.TodoItem{
				ID:          id,
				Title:       title,
				Description: firstNonNil(entry.ActiveForm, entry.Description),
				Status:      status,
				SkipReason:  deref(entry.SkipReason),
			})
		}
	}

	return domain.TodoState{Items: items}
}

func decodeList(raw string) (*[]writeItem, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty tool args")
	}

	var payload writePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode todo payload: %w", err)
	}

	list, _ := payload.list()
	return list, nil
}

func parseStatus(raw string) domain.TodoStatus {
	switch strings.ToLower(raw) {
	case "done", "completed":
		return domain.TodoDone
	case "in_progress":
		return domain.TodoInProgress
	case "skipped":
		return domain.TodoSkipped
	default:
		return domain.TodoPending
	}
}

func firstNonNil(values ...*string) string {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
