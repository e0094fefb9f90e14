package toml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"
	"github.com/natefinch/atomic"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	storeFileMode = 0o600
	storeDirMode  = 0o700
)

// Store serves a conversation tree from a single TOML snapshot file. Every
// read decodes the file, so external edits are seen on the next call.
type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var (
	_ ports.ConversationStore  = (*Store)(nil)
	_ ports.ConversationReader = (*Store)(nil)
	_ ports.ReportSource       = (*Store)(nil)
	_ ports.ProfileSource      = (*Store)(nil)
	_ ports.RuntimeSource      = (*Store)(nil)
	_ ports.SnapshotRepository = (*Store)(nil)
)

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Store{path: absPath, mu: lockForPath(absPath)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Messages(ctx context.Context, id domain.ConversationID) ([]domain.Message, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0)
	for _, entry := range file.Messages {
		if entry.ConversationID == string(id) {
			messages = append(messages, fromMessageSchema(entry))
		}
	}
	domain.SortMessages(messages)

	return messages, nil
}

func (s *Store) DescendantIDs(ctx context.Context, id domain.ConversationID) ([]domain.ConversationID, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return descendantIDs(file.Conversations, id), nil
}

func (s *Store) ConversationsByIDs(ctx context.Context, ids []domain.ConversationID) ([]domain.Conversation, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[string(id)] = struct{}{}
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, entry := range file.Conversations {
		if _, ok := wanted[entry.ID]; ok {
			conversations = append(conversations, fromConversationSchema(entry))
		}
	}

	return conversations, nil
}

// AllConversations returns the root and its descendants when filter.RootID is
// set, everything otherwise. Since drops conversations idle before it.
func (s *Store) AllConversations(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var scope map[string]struct{}
	if filter.RootID != "" {
		scope = map[string]struct{}{string(filter.RootID): {}}
		for _, id := range descendantIDs(file.Conversations, filter.RootID) {
			scope[string(id)] = struct{}{}
		}
	}

	conversations := make([]domain.Conversation, 0, len(file.Conversations))
	for _, entry := range file.Conversations {
		if scope != nil {
			if _, ok := scope[entry.ID]; !ok {
				continue
			}
		}
		conversation := fromConversationSchema(entry)
		if !filter.Since.IsZero() && conversation.EffectiveLastActivity.Before(filter.Since) {
			continue
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (s *Store) Conversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	file, err := s.load(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}

	for _, entry := range file.Conversations {
		if entry.ID == string(id) {
			return fromConversationSchema(entry), nil
		}
	}

	return domain.Conversation{}, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
}

func (s *Store) Reports(ctx context.Context) ([]domain.Report, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]domain.Report, 0, len(file.Reports))
	for _, entry := range file.Reports {
		reports = append(reports, fromReportSchema(entry))
	}

	return reports, nil
}

func (s *Store) ProfileName(ctx context.Context, pubkey string) (string, error) {
	file, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	for _, entry := range file.Profiles {
		if entry.Pubkey == pubkey && strings.TrimSpace(entry.Name) != "" {
			return entry.Name, nil
		}
	}

	return "", fmt.Errorf("%w: %s", domain.ErrProfileNotFound, pubkey)
}

func (s *Store) ConversationRuntimeMs(ctx context.Context, id domain.ConversationID) (uint64, error) {
	file, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	for _, entry := range file.Conversations {
		if entry.ID != string(id) {
			continue
		}
		if entry.RuntimeMs == nil {
			return 0, fmt.Errorf("%w: %s", domain.ErrRuntimeUnknown, id)
		}
		return *entry.RuntimeMs, nil
	}

	return 0, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
}

func (s *Store) Snapshot(ctx context.Context) (domain.StoreSnapshot, error) {
	file, err := s.load(ctx)
	if err != nil {
		return domain.StoreSnapshot{}, err
	}

	return toSnapshot(file), nil
}

// Save replaces the whole file with snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.StoreSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeSchema(fromSnapshot(snapshot))
}

func (s *Store) load(ctx context.Context) (fileSchema, error) {
	if err := ctx.Err(); err != nil {
		return fileSchema{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readSchema()
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read conversations file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode conversations file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), storeDirMode); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode conversations file: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replace conversations file: %w", err)
	}

	// atomic.WriteFile keeps the mode of an existing file but not of a new one.
	if err := os.Chmod(s.path, storeFileMode); err != nil {
		return fmt.Errorf("chmod conversations file: %w", err)
	}

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

// descendantIDs walks parent links depth first. Cycles and duplicate edges
// are visited once; the root is never part of the result.
func descendantIDs(conversations []conversationSchema, root domain.ConversationID) []domain.ConversationID {
	children := make(map[string][]string, len(conversations))
	for _, entry := range conversations {
		if entry.ParentID == "" || entry.ParentID == entry.ID {
			continue
		}
		children[entry.ParentID] = append(children[entry.ParentID], entry.ID)
	}

	visited := map[string]struct{}{string(root): {}}
	stack := []string{string(root)}
	var ids []domain.ConversationID

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range children[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			ids = append(ids, domain.ConversationID(child))
			stack = append(stack, child)
		}
	}

	slices.Sort(ids)
	return ids
}

func toSnapshot(file fileSchema) domain.StoreSnapshot {
	snapshot := domain.StoreSnapshot{
		Conversations: make([]domain.Conversation, 0, len(file.Conversations)),
		Messages:      make([]domain.Message, 0, len(file.Messages)),
		Reports:       make([]domain.Report, 0, len(file.Reports)),
		Profiles:      make(map[string]string, len(file.Profiles)),
		RuntimesMs:    map[domain.ConversationID]uint64{},
	}

	for _, entry := range file.Conversations {
		snapshot.Conversations = append(snapshot.Conversations, fromConversationSchema(entry))
		if entry.RuntimeMs != nil {
			snapshot.RuntimesMs[domain.ConversationID(entry.ID)] = *entry.RuntimeMs
		}
	}
	for _, entry := range file.Messages {
		snapshot.Messages = append(snapshot.Messages, fromMessageSchema(entry))
	}
	for _, entry := range file.Reports {
		snapshot.Reports = append(snapshot.Reports, fromReportSchema(entry))
	}
	for _, entry := range file.Profiles {
		snapshot.Profiles[entry.Pubkey] = entry.Name
	}

	return snapshot
}

func fromSnapshot(snapshot domain.StoreSnapshot) fileSchema {
	file := fileSchema{Version: currentSchemaVersion}

	for _, conversation := range snapshot.Conversations {
		var runtimeMs *uint64
		if ms, ok := snapshot.RuntimesMs[conversation.ID]; ok {
			runtimeMs = &ms
		}
		file.Conversations = append(file.Conversations, toConversationSchema(conversation, runtimeMs))
	}
	for _, message := range snapshot.Messages {
		file.Messages = append(file.Messages, toMessageSchema(message))
	}
	for _, report := range snapshot.Reports {
		file.Reports = append(file.Reports, toReportSchema(report))
	}

	pubkeys := make([]string, 0, len(snapshot.Profiles))
	for pubkey := range snapshot.Profiles {
		pubkeys = append(pubkeys, pubkey)
	}
	sort.Strings(pubkeys)
	for _, pubkey := range pubkeys {
		file.Profiles = append(file.Profiles, profileSchema{Pubkey: pubkey, Name: snapshot.Profiles[pubkey]})
	}

	return file
}
