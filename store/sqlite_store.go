package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tnicklin/hanabot/logger"
	"github.com/tnicklin/hanabot/persona"
)

var _ Store = (*SQLiteStore)(nil)

const (
	memoryDSN       = "file:hanabot?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000"
	defaultDebounce = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_channel ON history(channel_id, id);

CREATE TABLE IF NOT EXISTS memories (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id TEXT NOT NULL,
    guild_id   TEXT NOT NULL DEFAULT '',
    user_id    TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_channel ON memories(channel_id, id);
`

// SQLiteStore keeps the working database in memory and snapshots it to disk
// with a debounced flush, restoring from the snapshot on startup.
type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	snapshotPath string
	maxHistory   int
	logger       logger.Logger

	// Debounced flush
	flushDebounce time.Duration
	flushTimer    *time.Timer
	flushMu       sync.Mutex
	dirty         bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type Params struct {
	Config Config
	Logger logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	cfg := p.Config
	cfg.Defaults()

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &SQLiteStore{
		snapshotPath:  cfg.Path,
		maxHistory:    cfg.MaxHistory,
		flushDebounce: defaultDebounce,
		logger:        log,
	}
}

// SetFlushDebounce sets the debounce duration for disk flushes.
// Must be called before Open().
func (s *SQLiteStore) SetFlushDebounce(d time.Duration) {
	s.flushDebounce = d
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite3", memoryDSN)
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database without flushing. Use Shutdown for graceful shutdown.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopFlushTimer()
	if s.cancel != nil {
		s.cancel()
	}

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown performs a final flush to disk and closes the database.
func (s *SQLiteStore) Shutdown(ctx context.Context) error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	dirty := s.dirty
	s.flushMu.Unlock()

	if dirty && s.snapshotPath != "" {
		if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
			s.logger.ErrorW("shutdown flush failed", "error", err)
		}
	}

	return s.Close()
}

func (s *SQLiteStore) RestoreFromDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("store is not open")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	if err := s.backup(ctx, fileDB, s.db); err != nil {
		return err
	}

	// Snapshot may predate the current schema.
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FlushToDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushLocked(ctx, path)
}

func (s *SQLiteStore) scheduleFlush() {
	if s.snapshotPath == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = time.AfterFunc(s.flushDebounce, func() {
		s.performScheduledFlush()
	})
}

func (s *SQLiteStore) performScheduledFlush() {
	// Clear the dirty bit before flushing: a write that lands mid-flush
	// re-marks the store and re-arms the timer instead of being lost.
	s.flushMu.Lock()
	if !s.dirty {
		s.flushMu.Unlock()
		return
	}
	s.dirty = false
	s.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
		s.logger.ErrorW("scheduled flush failed", "error", err)
		s.flushMu.Lock()
		s.dirty = true
		s.flushMu.Unlock()
	}
}

func (s *SQLiteStore) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

// AppendHistory adds messages to a channel's rolling transcript and trims it
// to the newest maxHistory rows.
func (s *SQLiteStore) AppendHistory(ctx context.Context, channelID string, msgs ...persona.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("store is not open")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, msg := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (channel_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			channelID, msg.Role, msg.Content, now,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history
		 WHERE channel_id = ?
		   AND id NOT IN (
		       SELECT id FROM history WHERE channel_id = ? ORDER BY id DESC LIMIT ?
		   )`,
		channelID, channelID, s.maxHistory,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.DebugW("history appended",
		"channel_id", channelID,
		"messages", len(msgs),
	)

	s.scheduleFlush()
	return nil
}

// History returns a channel's transcript, oldest first.
func (s *SQLiteStore) History(ctx context.Context, channelID string) ([]persona.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not open")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM history WHERE channel_id = ? ORDER BY id ASC`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persona.Message
	for rows.Next() {
		var msg persona.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ClearHistory wipes a channel's transcript and reports how many rows it removed.
func (s *SQLiteStore) ClearHistory(ctx context.Context, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errors.New("store is not open")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE channel_id = ?`, channelID)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.InfoW("history cleared", "channel_id", channelID, "removed", removed)
		s.scheduleFlush()
	}
	return removed, nil
}

func (s *SQLiteStore) AddMemory(ctx context.Context, memory Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("store is not open")
	}

	createdAt := memory.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (channel_id, guild_id, user_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		memory.ChannelID, memory.GuildID, memory.UserID, memory.Content, createdAt,
	); err != nil {
		return err
	}

	s.logger.InfoW("memory stored",
		"channel_id", memory.ChannelID,
		"user_id", memory.UserID,
	)

	s.scheduleFlush()
	return nil
}

// ListMemories returns a channel's long-term memories, oldest first.
func (s *SQLiteStore) ListMemories(ctx context.Context, channelID string) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not open")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, guild_id, user_id, content, created_at
		 FROM memories WHERE channel_id = ? ORDER BY id ASC`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.GuildID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) flushLocked(ctx context.Context, path string) error {
	if s.db == nil {
		return errors.New("store is not open")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	return s.backup(ctx, s.db, fileDB)
}

func (s *SQLiteStore) backup(ctx context.Context, src *sql.DB, dst *sql.DB) error {
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dstSQLite, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver: %T", dstDriver)
			}
			srcSQLite, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver: %T", srcDriver)
			}

			backup, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return err
			}
			defer backup.Finish()

			_, err = backup.Step(-1)
			return err
		})
	})
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}
