package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethgigs/gigboard/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	role    TEXT PRIMARY KEY,
	token   TEXT NOT NULL,
	updated INTEGER NOT NULL
)`

// SQLiteStore persists tokens in the local database so a session survives a
// process restart.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates the sessions table when missing.
func NewSQLiteStore(ctx context.Context, database *db.DB) (*SQLiteStore, error) {
	if _, err := database.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: database}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, role Role) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `SELECT token FROM sessions WHERE role = ?`, string(role)).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session for %s: %w", role, err)
	}
	return token, nil
}

func (s *SQLiteStore) Put(ctx context.Context, role Role, token string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (role, token, updated) VALUES (?, ?, ?)
		 ON CONFLICT(role) DO UPDATE SET token = excluded.token, updated = excluded.updated`,
		string(role), token, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store session for %s: %w", role, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, role Role) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE role = ?`, string(role)); err != nil {
		return fmt.Errorf("delete session for %s: %w", role, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and throwaway sessions.
type MemStore struct {
	mu     sync.Mutex
	tokens map[Role]string
}

func NewMemStore() *MemStore {
	return &MemStore{tokens: make(map[Role]string)}
}

func (s *MemStore) Get(_ context.Context, role Role) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[role], nil
}

func (s *MemStore) Put(_ context.Context, role Role, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[role] = token
	return nil
}

func (s *MemStore) Delete(_ context.Context, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, role)
	return nil
}
