package toml

import (
	"fmt"
	"time"

	"github.com/bnema/convtree/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version       int                  `toml:"version"`
	Conversations []conversationSchema `toml:"conversations"`
	Messages      []messageSchema      `toml:"messages"`
	Reports       []reportSchema       `toml:"reports,omitempty"`
	Profiles      []profileSchema      `toml:"profiles,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported conversations schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type conversationSchema struct {
	ID                    string   `toml:"id"`
	ParentID              string   `toml:"parent_id,omitempty"`
	Author                string   `toml:"author,omitempty"`
	Pubkey                string   `toml:"pubkey"`
	Title                 string   `toml:"title,omitempty"`
	Summary               string   `toml:"summary,omitempty"`
	StatusLabel           string   `toml:"status_label,omitempty"`
	IsActive              bool     `toml:"is_active,omitempty"`
	CurrentActivity       string   `toml:"current_activity,omitempty"`
	LastActivity          string   `toml:"last_activity,omitempty"`
	EffectiveLastActivity string   `toml:"effective_last_activity,omitempty"`
	PTags                 []string `toml:"p_tags,omitempty"`
	RuntimeMs             *uint64  `toml:"runtime_ms,omitempty"`
}

type messageSchema struct {
	ID             string   `toml:"id"`
	ConversationID string   `toml:"conversation_id"`
	Pubkey         string   `toml:"pubkey"`
	Content        string   `toml:"content,omitempty"`
	CreatedAt      string   `toml:"created_at"`
	ToolName       string   `toml:"tool_name,omitempty"`
	ToolArgs       string   `toml:"tool_args,omitempty"`
	QTags          []string `toml:"q_tags,omitempty"`
	ATags          []string `toml:"a_tags,omitempty"`
	PTags          []string `toml:"p_tags,omitempty"`
}

type reportSchema struct {
	ID        string `toml:"id"`
	Kind      int    `toml:"kind,omitempty"`
	Author    string `toml:"author"`
	Slug      string `toml:"slug"`
	Title     string `toml:"title,omitempty"`
	Summary   string `toml:"summary,omitempty"`
	CreatedAt string `toml:"created_at"`
}

type profileSchema struct {
	Pubkey string `toml:"pubkey"`
	Name   string `toml:"name"`
}

func toConversationSchema(conversation domain.Conversation, runtimeMs *uint64) conversationSchema {
	return conversationSchema{
		ID:                    string(conversation.ID),
		ParentID:              string(conversation.ParentID),
		Author:                conversation.Author,
		Pubkey:                conversation.Pubkey,
		Title:                 conversation.Title,
		Summary:               conversation.Summary,
		StatusLabel:           conversation.StatusLabel,
		IsActive:              conversation.IsActive,
		CurrentActivity:       conversation.CurrentActivity,
		LastActivity:          formatTime(conversation.LastActivity),
		EffectiveLastActivity: formatTime(conversation.EffectiveLastActivity),
		PTags:                 conversation.PTags,
		RuntimeMs:             runtimeMs,
	}
}

func fromConversationSchema(entry conversationSchema) domain.Conversation {
	lastActivity := parseTime(entry.LastActivity)
	effective := parseTime(entry.EffectiveLastActivity)
	if effective.IsZero() {
		effective = lastActivity
	}

	return domain.Conversation{
		ID:                    domain.ConversationID(entry.ID),
		ParentID:              domain.ConversationID(entry.ParentID),
		Author:                entry.Author,
		Pubkey:                entry.Pubkey,
		Title:                 entry.Title,
		Summary:               entry.Summary,
		StatusLabel:           entry.StatusLabel,
		IsActive:              entry.IsActive,
		CurrentActivity:       entry.CurrentActivity,
		LastActivity:          lastActivity,
		EffectiveLastActivity: effective,
		PTags:                 entry.PTags,
	}
}

func toMessageSchema(message domain.Message) messageSchema {
	qTags := make([]string, 0, len(message.QTags))
	for _, id := range message.QTags {
		qTags = append(qTags, string(id))
	}
	if len(qTags) == 0 {
		qTags = nil
	}

	return messageSchema{
		ID:             message.ID,
		ConversationID: string(message.ConversationID),
		Pubkey:         message.Pubkey,
		Content:        message.Content,
		CreatedAt:      formatTime(message.CreatedAt),
		ToolName:       message.ToolName,
		ToolArgs:       message.ToolArgs,
		QTags:          qTags,
		ATags:          message.ATags,
		PTags:          message.PTags,
	}
}

func fromMessageSchema(entry messageSchema) domain.Message {
	var qTags []domain.ConversationID
	for _, id := range entry.QTags {
		qTags = append(qTags, domain.ConversationID(id))
	}

	return domain.Message{
		ID:             entry.ID,
		ConversationID: domain.ConversationID(entry.ConversationID),
		Pubkey:         entry.Pubkey,
		Content:        entry.Content,
		CreatedAt:      parseTime(entry.CreatedAt),
		ToolName:       entry.ToolName,
		ToolArgs:       entry.ToolArgs,
		QTags:          qTags,
		ATags:          entry.ATags,
		PTags:          entry.PTags,
	}
}

func toReportSchema(report domain.Report) reportSchema {
	return reportSchema{
		ID:        report.ID,
		Kind:      report.Kind,
		Author:    report.Author,
		Slug:      report.Slug,
		Title:     report.Title,
		Summary:   report.Summary,
		CreatedAt: formatTime(report.CreatedAt),
	}
}

func fromReportSchema(entry reportSchema) domain.Report {
	kind := entry.Kind
	if kind == 0 {
		kind = domain.ReportKind
	}

	return domain.Report{
		ID:        entry.ID,
		Kind:      kind,
		Author:    entry.Author,
		Slug:      entry.Slug,
		Title:     entry.Title,
		Summary:   entry.Summary,
		CreatedAt: parseTime(entry.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
