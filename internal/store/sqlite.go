package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Backend and Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	storeID   string
	sessionMu sync.Mutex // serializes session writes to avoid SQLITE_BUSY
}

// NewSQLite opens (creating if needed) the database at dbPath. Records written
// through this store are tagged with storeID.
func NewSQLite(dbPath, storeID string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, storeID: storeID}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store_id TEXT NOT NULL,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		head TEXT,
		fs_root TEXT NOT NULL,
		permissions TEXT NOT NULL,
		executor_addr TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StoreID returns the name this store tags its records with.
func (s *SQLiteStore) StoreID() string {
	return s.storeID
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Do serves a store protocol request. Failures the store can describe are
// reported through Response.Status; only context errors are returned.
func (s *SQLiteStore) Do(ctx context.Context, req Request) (Response, error) {
	switch req.Action {
	case ActionPut:
		id, err := s.insertRecord(ctx, req.Value)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{Status: StatusError, Error: err.Error()}, nil
		}
		return Response{Status: StatusOK, Key: strconv.FormatInt(id, 10)}, nil
	case ActionGet:
		value, err := s.getRecord(ctx, req.Key)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{Status: StatusError, Error: err.Error()}, nil
		}
		return Response{Status: StatusOK, Key: req.Key, Value: value}, nil
	default:
		return Response{Status: StatusError, Error: fmt.Sprintf("unknown action %q", req.Action)}, nil
	}
}

// insertRecord appends a record, retrying with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) insertRecord(ctx context.Context, value []byte) (int64, error) {
	if value == nil {
		return 0, errors.New("empty record")
	}

	var lastErr error
	for i := 0; i < busyRetries; i++ {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO records (store_id, value, created_at) VALUES (?, ?, ?)`,
			s.storeID, value, time.Now().Unix(),
		)
		if err == nil {
			return res.LastInsertId()
		}
		lastErr = err

		if !isConflictError(err) || i == busyRetries-1 {
			break
		}
		delay := busyBaseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("Record insert failed with SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	return 0, fmt.Errorf("insert record: %w", lastErr)
}

func (s *SQLiteStore) getRecord(ctx context.Context, key string) ([]byte, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed record id %q", key)
	}

	var value []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE id = ? AND store_id = ?`, id, s.storeID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return value, nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, store_id, head, fs_root, permissions, executor_addr, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.Session
	var head, executorAddr sql.NullString
	var perms string
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &session.StoreID, &head, &session.FilesystemRoot,
		&perms, &executorAddr, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Permissions, err = domain.ParsePermissions(perms)
	if err != nil {
		return nil, fmt.Errorf("session %s permissions: %w", sessionID, err)
	}
	session.Head = head.String
	session.ExecutorAddr = executorAddr.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// UpsertSession creates or updates a session row.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.Session) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
	INSERT INTO sessions (session_id, store_id, head, fs_root, permissions, executor_addr, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		head = excluded.head,
		fs_root = excluded.fs_root,
		permissions = excluded.permissions,
		executor_addr = excluded.executor_addr,
		updated_at = excluded.updated_at`

	var head interface{}
	if session.Head != "" {
		head = session.Head
	}
	var executorAddr interface{}
	if session.ExecutorAddr != "" {
		executorAddr = session.ExecutorAddr
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	perms := make([]string, 0, len(session.Permissions))
	for _, p := range session.Permissions.Sorted() {
		perms = append(perms, string(p))
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.StoreID, head, session.FilesystemRoot,
		strings.Join(perms, ","), executorAddr,
		createdAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

var (
	_ Backend    = (*SQLiteStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)
