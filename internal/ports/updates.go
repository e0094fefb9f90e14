package ports

import (
	"context"

	"github.com/bnema/convtree/internal/domain"
)

// UpdateSink receives pushed snapshots. Implementations must not block for long.
type UpdateSink interface {
	RootID() domain.ConversationID
	ApplyOwnMessages(messages []domain.Message)
	ApplyConversations(conversations []domain.Conversation)
	ApplyDescendantMessages(messages map[domain.ConversationID][]domain.Message)
	ApplyReports(reports []domain.Report)
}

// UpdateSource pushes snapshots into a sink until ctx is done.
type UpdateSource interface {
	Subscribe(ctx context.Context, sink UpdateSink) error
}
