package domain

import (
	"slices"
	"time"
)

type ConversationID string

type Conversation struct {
	ID                    ConversationID
	ParentID              ConversationID
	Author                string
	Pubkey                string
	Title                 string
	Summary               string
	StatusLabel           string
	IsActive              bool
	CurrentActivity       string
	LastActivity          time.Time
	EffectiveLastActivity time.Time
	PTags                 []string
}

func (c Conversation) IsRoot() bool {
	return c.ParentID == ""
}

func (c Conversation) Clone() Conversation {
	c.PTags = slices.Clone(c.PTags)
	return c
}

func CloneConversations(conversations []Conversation) []Conversation {
	if conversations == nil {
		return nil
	}
	out := make([]Conversation, len(conversations))
	for i, conversation := range conversations {
		out[i] = conversation.Clone()
	}
	return out
}

// FirstRecipient returns the first p-tag, the conversation's addressed participant.
func (c Conversation) FirstRecipient() (string, bool) {
	if len(c.PTags) == 0 {
		return "", false
	}

	return c.PTags[0], true
}

// RecipientPubkey falls back to the author when nobody is addressed.
func (c Conversation) RecipientPubkey() string {
	if recipient, ok := c.FirstRecipient(); ok {
		return recipient
	}

	return c.Pubkey
}

func (c Conversation) Preview() string {
	if c.Summary != "" {
		return c.Summary
	}

	return c.Title
}

func (c Conversation) Equal(other Conversation) bool {
	return c.ID == other.ID &&
		c.ParentID == other.ParentID &&
		c.Author == other.Author &&
		c.Pubkey == other.Pubkey &&
		c.Title == other.Title &&
		c.Summary == other.Summary &&
		c.StatusLabel == other.StatusLabel &&
		c.IsActive == other.IsActive &&
		c.CurrentActivity == other.CurrentActivity &&
		c.LastActivity.Equal(other.LastActivity) &&
		c.EffectiveLastActivity.Equal(other.EffectiveLastActivity) &&
		slices.Equal(c.PTags, other.PTags)
}

// ConversationFilter narrows getAllConversations. Zero values match everything.
type ConversationFilter struct {
	RootID ConversationID
	Since  time.Time
}
