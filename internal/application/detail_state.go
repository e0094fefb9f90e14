package application

import (
	"slices"

	"github.com/bnema/convtree/internal/domain"
)

type LoadState int

const (
	StateIdle LoadState = iota
	StateLoadingOwnMessages
	StateLoadingDescendants
	StateRecomputing
	StateReady
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingOwnMessages:
		return "loading_own_messages"
	case StateLoadingDescendants:
		return "loading_descendants"
	case StateRecomputing:
		return "recomputing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DetailState is the read-only view published to presentation.
type DetailState struct {
	Conversation      domain.Conversation
	State             LoadState
	IsLoading         bool
	Err               error `json:"-"`
	Error             string
	Messages          []domain.Message
	Children          []domain.Conversation
	LatestReply       *domain.Message
	TodoState         domain.TodoState
	TodoStats         domain.AggregateTodoStats
	Delegations       []domain.DelegationItem
	ReferencedReports []domain.ReferencedReportItem
	Participants      []domain.Participant
	Recipient         *domain.Participant
	OtherParticipants []domain.Participant
	Runtime           string
}

// clone copies every slice and pointer reachable from d, nested tags included.
func (d DetailState) clone() DetailState {
	out := d
	out.Conversation = d.Conversation.Clone()
	out.Messages = domain.CloneMessages(d.Messages)
	out.Children = domain.CloneConversations(d.Children)
	out.TodoState.Items = slices.Clone(d.TodoState.Items)
	out.Delegations = cloneEach(d.Delegations, domain.DelegationItem.Clone)
	out.ReferencedReports = cloneEach(d.ReferencedReports, domain.ReferencedReportItem.Clone)
	out.Participants = slices.Clone(d.Participants)
	out.OtherParticipants = slices.Clone(d.OtherParticipants)
	if d.LatestReply != nil {
		reply := d.LatestReply.Clone()
		out.LatestReply = &reply
	}
	if d.Recipient != nil {
		recipient := *d.Recipient
		out.Recipient = &recipient
	}
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return out
}

func cloneEach[T any](items []T, clone func(T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = clone(item)
	}
	return out
}
