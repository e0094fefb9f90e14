package watch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tomlstore "github.com/bnema/convtree/internal/adapters/store/toml"
	"github.com/bnema/convtree/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	own           []domain.Message
	descendants   map[domain.ConversationID][]domain.Message
	reports       []domain.Report
	pushes        int
}

func (s *recordingSink) RootID() domain.ConversationID { return "root" }

func (s *recordingSink) ApplyOwnMessages(messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.own = messages
}

func (s *recordingSink) ApplyConversations(conversations []domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
}

func (s *recordingSink) ApplyDescendantMessages(messages map[domain.ConversationID][]domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descendants = messages
}

func (s *recordingSink) ApplyReports(reports []domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = reports
	s.pushes++
}

func (s *recordingSink) pushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(titles ...string) domain.StoreSnapshot {
	out := domain.StoreSnapshot{
		Conversations: []domain.Conversation{{ID: "root", Pubkey: "pk-root"}},
		Messages: []domain.Message{
			{ID: "r2", ConversationID: "root", Content: "later", CreatedAt: at.Add(time.Minute)},
			{ID: "r1", ConversationID: "root", Content: "first", CreatedAt: at},
		},
	}
	for _, title := range titles {
		id := domain.ConversationID(title)
		out.Conversations = append(out.Conversations, domain.Conversation{ID: id, ParentID: "root", Title: title})
		out.Messages = append(out.Messages, domain.Message{ID: title + "-m", ConversationID: id, Content: "hi", CreatedAt: at})
	}
	return out
}

func TestPushSplitsOwnAndDescendantMessages(t *testing.T) {
	t.Parallel()

	store, err := tomlstore.NewStore(filepath.Join(t.TempDir(), "conversations.toml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), snapshot("a", "b")))

	source, err := NewFileSource(store.Path(), store, nil, 0)
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, source.Push(context.Background(), sink))

	require.Len(t, sink.own, 2)
	assert.Equal(t, "r1", sink.own[0].ID)
	assert.Len(t, sink.conversations, 3)
	assert.Len(t, sink.descendants, 2)
	assert.NotContains(t, sink.descendants, domain.ConversationID("root"))
	assert.Equal(t, 1, sink.pushes)
}

func TestSubscribePushesAfterFileChange(t *testing.T) {
	store, err := tomlstore.NewStore(filepath.Join(t.TempDir(), "conversations.toml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), snapshot("a")))

	source, err := NewFileSource(store.Path(), store, nil, 20*time.Millisecond)
	require.NoError(t, err)

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, source.Subscribe(ctx, sink))
	require.Error(t, source.Subscribe(ctx, sink))

	require.NoError(t, store.Save(context.Background(), snapshot("a", "b")))

	require.Eventually(t, func() bool { return sink.pushCount() > 0 }, 5*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	assert.Len(t, sink.conversations, 3)
	sink.mu.Unlock()

	require.NoError(t, source.Stop())
	require.NoError(t, source.Stop())
}

func TestNewFileSourceRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileSource("", nil, nil, 0)
	require.Error(t, err)
}
