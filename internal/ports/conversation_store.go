package ports

import (
	"context"

	"github.com/bnema/convtree/internal/domain"
)

type ConversationStore interface {
	Messages(ctx context.Context, id domain.ConversationID) ([]domain.Message, error)
	DescendantIDs(ctx context.Context, id domain.ConversationID) ([]domain.ConversationID, error)
	ConversationsByIDs(ctx context.Context, ids []domain.ConversationID) ([]domain.Conversation, error)
	AllConversations(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error)
}

type ReportSource interface {
	Reports(ctx context.Context) ([]domain.Report, error)
}

type ProfileSource interface {
	ProfileName(ctx context.Context, pubkey string) (string, error)
}

type RuntimeSource interface {
	ConversationRuntimeMs(ctx context.Context, id domain.ConversationID) (uint64, error)
}

// SnapshotRepository moves whole stores in and out, for import and export.
type SnapshotRepository interface {
	Snapshot(ctx context.Context) (domain.StoreSnapshot, error)
	Save(ctx context.Context, snapshot domain.StoreSnapshot) error
}

// ConversationReader looks up a single conversation by id.
type ConversationReader interface {
	Conversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
}
