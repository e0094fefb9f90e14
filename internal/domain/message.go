package domain

import (
	"slices"
	"sort"
	"time"
)

type Message struct {
	ID             string
	ConversationID ConversationID
	Pubkey         string
	Content        string
	CreatedAt      time.Time
	ToolName       string
	ToolArgs       string
	QTags          []ConversationID
	ATags          []string
	PTags          []string
}

func (m Message) IsToolCall() bool {
	return m.ToolName != ""
}

// IsReply reports whether the message is plain text a reader would see as a reply.
func (m Message) IsReply() bool {
	return !m.IsToolCall() && m.Content != ""
}

// Clone copies the tag slices so the result shares no memory with m.
func (m Message) Clone() Message {
	m.QTags = slices.Clone(m.QTags)
	m.ATags = slices.Clone(m.ATags)
	m.PTags = slices.Clone(m.PTags)
	return m
}

func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, message := range messages {
		out[i] = message.Clone()
	}
	return out
}

func (m Message) Equal(other Message) bool {
	return m.ID == other.ID &&
		m.ConversationID == other.ConversationID &&
		m.Pubkey == other.Pubkey &&
		m.Content == other.Content &&
		m.CreatedAt.Equal(other.CreatedAt) &&
		m.ToolName == other.ToolName &&
		m.ToolArgs == other.ToolArgs &&
		slices.Equal(m.QTags, other.QTags) &&
		slices.Equal(m.ATags, other.ATags) &&
		slices.Equal(m.PTags, other.PTags)
}

func MessagesEqual(a, b []Message) bool {
	return slices.EqualFunc(a, b, Message.Equal)
}

// LatestReply returns the last plain reply in the list.
func LatestReply(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsReply() {
			return messages[i], true
		}
	}

	return Message{}, false
}

// SortMessages orders messages by creation time, then id.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
}
