package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ashureev/shsh-chat/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"), "test")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_PutGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.Do(ctx, Request{Action: ActionPut, Value: []byte("one")})
	if err != nil || first.Status != StatusOK {
		t.Fatalf("put failed: %+v %v", first, err)
	}
	second, err := s.Do(ctx, Request{Action: ActionPut, Value: []byte("two")})
	if err != nil || second.Status != StatusOK {
		t.Fatalf("put failed: %+v %v", second, err)
	}
	if first.Key == second.Key {
		t.Fatalf("expected distinct ids, got %q twice", first.Key)
	}

	got, err := s.Do(ctx, Request{Action: ActionGet, Key: first.Key})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusOK || string(got.Value) != "one" {
		t.Errorf("unexpected get response: %+v", got)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestSQLite(t)

	tests := []struct {
		name string
		key  string
	}{
		{"unknown id", "999"},
		{"malformed id", "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.Do(context.Background(), Request{Action: ActionGet, Key: tt.key})
			if err != nil {
				t.Fatalf("unexpected transport error: %v", err)
			}
			if resp.Status != StatusError {
				t.Errorf("status = %q, want %q", resp.Status, StatusError)
			}
		})
	}
}

func TestSQLiteStore_RecordsScopedByStoreID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.db")

	a, err := NewSQLite(path, "a")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := NewSQLite(path, "b")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = b.Close() }()

	put, err := a.Do(context.Background(), Request{Action: ActionPut, Value: []byte("x")})
	if err != nil || put.Status != StatusOK {
		t.Fatalf("put failed: %+v %v", put, err)
	}
	resp, err := b.Do(context.Background(), Request{Action: ActionGet, Key: put.Key})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.Status != StatusError {
		t.Errorf("expected record from store a to be invisible to store b")
	}
}

func TestSQLiteStore_SessionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	missing, err := s.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil session, got %+v %v", missing, err)
	}

	session := &domain.Session{
		ID:             "sess-1",
		StoreID:        "test",
		FilesystemRoot: "/work",
		Permissions:    domain.Permissions{domain.PermWrite, domain.PermRead},
	}
	if err := s.UpsertSession(ctx, session); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	session.Head = "42"
	session.ExecutorAddr = "localhost:50052"
	if err := s.UpsertSession(ctx, session); err != nil {
		t.Fatalf("UpsertSession update failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil || got == nil {
		t.Fatalf("GetSession failed: %+v %v", got, err)
	}
	if got.Head != "42" {
		t.Errorf("Head = %q, want 42", got.Head)
	}
	if got.FilesystemRoot != "/work" || got.ExecutorAddr != "localhost:50052" {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Permissions.String() != "read, write" {
		t.Errorf("Permissions = %q, want %q", got.Permissions.String(), "read, write")
	}
}

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errString("SQLITE_BUSY: database busy"), true},
		{"locked", errString("database is locked"), true},
		{"other", errString("constraint failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConflictError(tt.err); got != tt.want {
				t.Errorf("isConflictError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
