package domain

import "time"

type DelegationItem struct {
	ID              string
	RecipientName   string
	RecipientPubkey string
	Preview         string
	ConversationID  ConversationID
	Timestamp       time.Time
	TodoStats       *AggregateTodoStats
}

type Participant struct {
	Pubkey string
	Name   string
}

func (d DelegationItem) Clone() DelegationItem {
	if d.TodoStats != nil {
		stats := *d.TodoStats
		d.TodoStats = &stats
	}
	return d
}
