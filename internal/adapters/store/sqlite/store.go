package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"

	_ "modernc.org/sqlite"
)

// Store keeps conversation trees in SQLite (WAL mode).
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ ports.ConversationStore  = (*Store)(nil)
	_ ports.ConversationReader = (*Store)(nil)
	_ ports.ReportSource       = (*Store)(nil)
	_ ports.ProfileSource      = (*Store)(nil)
	_ ports.RuntimeSource      = (*Store)(nil)
	_ ports.SnapshotRepository = (*Store)(nil)
)

func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id                      TEXT PRIMARY KEY,
		parent_id               TEXT NOT NULL DEFAULT '',
		author                  TEXT NOT NULL DEFAULT '',
		pubkey                  TEXT NOT NULL DEFAULT '',
		title                   TEXT NOT NULL DEFAULT '',
		summary                 TEXT NOT NULL DEFAULT '',
		status_label            TEXT NOT NULL DEFAULT '',
		is_active               INTEGER NOT NULL DEFAULT 0,
		current_activity        TEXT NOT NULL DEFAULT '',
		last_activity           TEXT NOT NULL DEFAULT '',
		effective_last_activity TEXT NOT NULL DEFAULT '',
		p_tags                  TEXT NOT NULL DEFAULT '[]',
		runtime_ms              INTEGER
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		pubkey          TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL DEFAULT '',
		tool_name       TEXT NOT NULL DEFAULT '',
		tool_args       TEXT NOT NULL DEFAULT '',
		q_tags          TEXT NOT NULL DEFAULT '[]',
		a_tags          TEXT NOT NULL DEFAULT '[]',
		p_tags          TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS reports (
		id         TEXT PRIMARY KEY,
		kind       INTEGER NOT NULL,
		author     TEXT NOT NULL,
		slug       TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		summary    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS profiles (
		pubkey TEXT PRIMARY KEY,
		name   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_parent ON conversations(parent_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

const conversationColumns = `id, parent_id, author, pubkey, title, summary, status_label,
	is_active, current_activity, last_activity, effective_last_activity, p_tags, runtime_ms`

const messageColumns = `id, conversation_id, pubkey, content, created_at, tool_name, tool_args,
	q_tags, a_tags, p_tags`

func (s *Store) Messages(ctx context.Context, id domain.ConversationID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=? ORDER BY created_at, id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// DescendantIDs walks parent links with a recursive CTE. UNION dedups, so
// cycles terminate.
func (s *Store) DescendantIDs(ctx context.Context, id domain.ConversationID) ([]domain.ConversationID, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM conversations WHERE parent_id = ?1 AND id <> ?1
			UNION
			SELECT c.id FROM conversations c JOIN tree t ON c.parent_id = t.id
		)
		SELECT id FROM tree WHERE id <> ?1 ORDER BY id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query descendant ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.ConversationID
	for rows.Next() {
		var descendant string
		if err := rows.Scan(&descendant); err != nil {
			return nil, fmt.Errorf("scan descendant id: %w", err)
		}
		ids = append(ids, domain.ConversationID(descendant))
	}

	return ids, rows.Err()
}

func (s *Store) ConversationsByIDs(ctx context.Context, ids []domain.ConversationID) ([]domain.Conversation, error) {
	if len(ids) == 0 {
		return []domain.Conversation{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = string(id)
	}

	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id IN (`+strings.Join(placeholders, ",")+`) ORDER BY id`,
		args...)
}

func (s *Store) AllConversations(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	var err error

	if filter.RootID != "" {
		conversations, err = s.queryConversations(ctx, `
			WITH RECURSIVE tree(id) AS (
				SELECT ?1
				UNION
				SELECT c.id FROM conversations c JOIN tree t ON c.parent_id = t.id
			)
			SELECT `+conversationColumns+` FROM conversations WHERE id IN (SELECT id FROM tree) ORDER BY id`,
			string(filter.RootID))
	} else {
		conversations, err = s.queryConversations(ctx, `SELECT `+conversationColumns+` FROM conversations ORDER BY id`)
	}
	if err != nil {
		return nil, err
	}

	if filter.Since.IsZero() {
		return conversations, nil
	}

	recent := conversations[:0]
	for _, conversation := range conversations {
		if !conversation.EffectiveLastActivity.Before(filter.Since) {
			recent = append(recent, conversation)
		}
	}
	return recent, nil
}

func (s *Store) Conversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	conversations, err := s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=?`, string(id))
	if err != nil {
		return domain.Conversation{}, err
	}
	if len(conversations) == 0 {
		return domain.Conversation{}, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
	}

	return conversations[0], nil
}

func (s *Store) Reports(ctx context.Context) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, author, slug, title, summary, created_at FROM reports ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]domain.Report, 0)
	for rows.Next() {
		var report domain.Report
		var createdAt string
		if err := rows.Scan(&report.ID, &report.Kind, &report.Author, &report.Slug,
			&report.Title, &report.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.CreatedAt = parseTime(createdAt)
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func (s *Store) ProfileName(ctx context.Context, pubkey string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM profiles WHERE pubkey=?`, pubkey).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", domain.ErrProfileNotFound, pubkey)
		}
		return "", fmt.Errorf("query profile: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrProfileNotFound, pubkey)
	}

	return name, nil
}

func (s *Store) ConversationRuntimeMs(ctx context.Context, id domain.ConversationID) (uint64, error) {
	var runtimeMs sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT runtime_ms FROM conversations WHERE id=?`, string(id)).Scan(&runtimeMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
		}
		return 0, fmt.Errorf("query runtime: %w", err)
	}
	if !runtimeMs.Valid || runtimeMs.Int64 < 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrRuntimeUnknown, id)
	}

	return uint64(runtimeMs.Int64), nil
}

func (s *Store) Snapshot(ctx context.Context) (domain.StoreSnapshot, error) {
	conversations, err := s.AllConversations(ctx, domain.ConversationFilter{})
	if err != nil {
		return domain.StoreSnapshot{}, err
	}

	snapshot := domain.StoreSnapshot{
		Conversations: conversations,
		Profiles:      map[string]string{},
		RuntimesMs:    map[domain.ConversationID]uint64{},
	}

	for _, conversation := range conversations {
		ms, err := s.ConversationRuntimeMs(ctx, conversation.ID)
		if err == nil {
			snapshot.RuntimesMs[conversation.ID] = ms
		} else if !errors.Is(err, domain.ErrRuntimeUnknown) {
			return domain.StoreSnapshot{}, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY conversation_id, created_at, id`)
	if err != nil {
		return domain.StoreSnapshot{}, fmt.Errorf("query messages: %w", err)
	}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			_ = rows.Close()
			return domain.StoreSnapshot{}, err
		}
		snapshot.Messages = append(snapshot.Messages, message)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return domain.StoreSnapshot{}, fmt.Errorf("read messages: %w", err)
	}

	if snapshot.Reports, err = s.Reports(ctx); err != nil {
		return domain.StoreSnapshot{}, err
	}

	profileRows, err := s.db.QueryContext(ctx, `SELECT pubkey, name FROM profiles`)
	if err != nil {
		return domain.StoreSnapshot{}, fmt.Errorf("query profiles: %w", err)
	}
	defer profileRows.Close()
	for profileRows.Next() {
		var pubkey, name string
		if err := profileRows.Scan(&pubkey, &name); err != nil {
			return domain.StoreSnapshot{}, fmt.Errorf("scan profile: %w", err)
		}
		snapshot.Profiles[pubkey] = name
	}

	return snapshot, profileRows.Err()
}

// Save replaces the whole database content with snapshot in one transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.StoreSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"conversations", "messages", "reports", "profiles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, conversation := range snapshot.Conversations {
		var runtimeMs any
		if ms, ok := snapshot.RuntimesMs[conversation.ID]; ok {
			runtimeMs = int64(ms)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (`+conversationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(conversation.ID), string(conversation.ParentID), conversation.Author, conversation.Pubkey,
			conversation.Title, conversation.Summary, conversation.StatusLabel, boolToInt(conversation.IsActive),
			conversation.CurrentActivity, formatTime(conversation.LastActivity),
			formatTime(conversation.EffectiveLastActivity), encodeTags(conversation.PTags), runtimeMs,
		); err != nil {
			return fmt.Errorf("insert conversation %s: %w", conversation.ID, err)
		}
	}

	for _, message := range snapshot.Messages {
		qTags := make([]string, 0, len(message.QTags))
		for _, id := range message.QTags {
			qTags = append(qTags, string(id))
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			message.ID, string(message.ConversationID), message.Pubkey, message.Content,
			formatTime(message.CreatedAt), message.ToolName, message.ToolArgs,
			encodeTags(qTags), encodeTags(message.ATags), encodeTags(message.PTags),
		); err != nil {
			return fmt.Errorf("insert message %s: %w", message.ID, err)
		}
	}

	for _, report := range snapshot.Reports {
		kind := report.Kind
		if kind == 0 {
			kind = domain.ReportKind
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, kind, author, slug, title, summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.ID, kind, report.Author, report.Slug, report.Title, report.Summary, formatTime(report.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert report %s: %w", report.ID, err)
		}
	}

	for pubkey, name := range snapshot.Profiles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (pubkey, name) VALUES (?, ?)`, pubkey, name); err != nil {
			return fmt.Errorf("insert profile %s: %w", pubkey, err)
		}
	}

	return tx.Commit()
}

func (s *Store) queryConversations(ctx context.Context, query string, args ...any) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]domain.Conversation, 0)
	for rows.Next() {
		var (
			conversation                   domain.Conversation
			id, parentID                   string
			isActive                       int
			lastActivity, effective, pTags string
			runtimeMs                      sql.NullInt64
		)
		if err := rows.Scan(&id, &parentID, &conversation.Author, &conversation.Pubkey,
			&conversation.Title, &conversation.Summary, &conversation.StatusLabel, &isActive,
			&conversation.CurrentActivity, &lastActivity, &effective, &pTags, &runtimeMs); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}

		conversation.ID = domain.ConversationID(id)
		conversation.ParentID = domain.ConversationID(parentID)
		conversation.IsActive = isActive != 0
		conversation.LastActivity = parseTime(lastActivity)
		conversation.EffectiveLastActivity = parseTime(effective)
		if conversation.EffectiveLastActivity.IsZero() {
			conversation.EffectiveLastActivity = conversation.LastActivity
		}
		conversation.PTags = decodeTags(pTags)
		conversations = append(conversations, conversation)
	}

	return conversations, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (domain.Message, error) {
	var (
		message                   domain.Message
		conversationID, createdAt string
		qTags, aTags, pTags       string
	)
	if err := row.Scan(&message.ID, &conversationID, &message.Pubkey, &message.Content, &createdAt,
		&message.ToolName, &message.ToolArgs, &qTags, &aTags, &pTags); err != nil {
		return domain.Message{}, fmt.Errorf("scan message: %w", err)
	}

	message.ConversationID = domain.ConversationID(conversationID)
	message.CreatedAt = parseTime(createdAt)
	for _, id := range decodeTags(qTags) {
		message.QTags = append(message.QTags, domain.ConversationID(id))
	}
	message.ATags = decodeTags(aTags)
	message.PTags = decodeTags(pTags)

	return message, nil
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
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

// formatTime uses a fixed-width layout so TEXT ordering matches time ordering.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
