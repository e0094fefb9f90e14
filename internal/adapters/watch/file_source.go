package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// FileSource watches a snapshot file and pushes its content into a sink after
// every settled change. The parent directory is watched so atomic replaces
// (rename over the file) are seen.
type FileSource struct {
	path     string
	repo     ports.SnapshotRepository
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

var _ ports.UpdateSource = (*FileSource)(nil)

func NewFileSource(path string, repo ports.SnapshotRepository, logger *zap.Logger, debounce time.Duration) (*FileSource, error) {
	if path == "" {
		return nil, errors.New("watch path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &FileSource{
		path:     filepath.Clean(absPath),
		repo:     repo,
		logger:   logger,
		debounce: debounce,
	}, nil
}

// Subscribe starts watching and returns immediately. A source feeds one sink.
func (s *FileSource) Subscribe(ctx context.Context, sink ports.UpdateSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("file source already subscribed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	go s.run(ctx, sink, watcher, s.stopCh, s.doneCh)

	s.logger.Debug("watching snapshot file", zap.String("path", s.path))
	return nil
}

// Stop ends the watch loop and waits for it.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	watcher, stopCh, doneCh := s.watcher, s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	if err := watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

func (s *FileSource) run(ctx context.Context, sink ports.UpdateSink, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !s.relevant(event) {
				continue
			}
			timer.Reset(s.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("snapshot watcher error", zap.Error(err))
		case <-timer.C:
			if err := s.Push(ctx, sink); err != nil && ctx.Err() == nil {
				s.logger.Warn("push snapshot failed", zap.Error(err))
			}
		}
	}
}

func (s *FileSource) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

// Push reads the snapshot once and hands it to sink: conversations first,
// then messages split between the root and its descendants, then reports.
func (s *FileSource) Push(ctx context.Context, sink ports.UpdateSink) error {
	snapshot, err := s.repo.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rootID := sink.RootID()
	grouped := snapshot.MessagesByConversation()
	own := grouped[rootID]
	delete(grouped, rootID)
	if own == nil {
		own = []domain.Message{}
	}

	sink.ApplyConversations(snapshot.Conversations)
	sink.ApplyOwnMessages(own)
	sink.ApplyDescendantMessages(grouped)
	sink.ApplyReports(snapshot.Reports)

	s.logger.Debug("snapshot pushed",
		zap.Int("conversations", len(snapshot.Conversations)),
		zap.Int("messages", len(snapshot.Messages)))
	return nil
}
