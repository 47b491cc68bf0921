/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements marketplace.RequestStore and identity.UserStore using
  SQLite. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences (see store/postgres).

CONDITIONAL UPDATE:
  CompareAndUpdateStatus is a single UPDATE guarded by the expected
  status in the WHERE clause:

    UPDATE requests SET status = ? ... WHERE id = ? AND status = ?

  Zero rows affected means the guard failed: either the request is
  missing (ErrNotFound) or another caller changed the status first
  (ErrConflict). SQLite serializes writers, so the guard and the write
  are atomic.

KEY TABLES:
  requests:  Exchange requests; never deleted, status transitions only
  users:     Registered participants; phone is UNIQUE

AMOUNTS:
  Stored as INTEGER paise to keep arithmetic exact and sorting cheap.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/cashswap.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - marketplace/store.go: RequestStore contract
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cashswap/exchange-engine/identity"
	"github.com/cashswap/exchange-engine/marketplace"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection avoids "database is locked" errors from
	// concurrent writers; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Exchange requests. Never deleted; status transitions only.
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		req_type TEXT NOT NULL,
		amount_paise INTEGER NOT NULL,
		location TEXT NOT NULL,
		status TEXT NOT NULL,
		matched_with TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Candidate scan (hot path): open requests of one type.
	CREATE INDEX IF NOT EXISTS idx_requests_type_status
		ON requests(req_type, status, created_at);

	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON requests(user_id, created_at);

	-- Users. Phone is the login handle.
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Insert(ctx context.Context, req marketplace.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.ID),
		string(req.UserID),
		string(req.Type),
		req.Amount.Subunits(),
		req.Location,
		string(req.Status),
		matchedWithValue(req.MatchedWith),
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
		req.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id marketplace.RequestID) (*marketplace.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at
		FROM requests WHERE id = ?`, string(id))

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) ListByType(ctx context.Context, reqType marketplace.RequestType, statuses ...marketplace.RequestStatus) ([]marketplace.Request, error) {
	query := `
		SELECT id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at
		FROM requests WHERE req_type = ?`
	args := []any{string(reqType)}

	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		query += " AND status IN (" + placeholders + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY created_at ASC, id ASC"

	return s.queryRequests(ctx, query, args...)
}

func (s *Store) ListByUser(ctx context.Context, userID marketplace.UserID) ([]marketplace.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at
		FROM requests WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, string(userID))
}

// CompareAndUpdateStatus performs the optimistic conditional update.
// The expected status in the WHERE clause makes the check-and-set
// atomic; zero affected rows means the guard failed.
func (s *Store) CompareAndUpdateStatus(ctx context.Context, id marketplace.RequestID, expected, next marketplace.RequestStatus, matchedWith *marketplace.RequestID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, matched_with = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(next),
		matchedWithValue(matchedWith),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(id),
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Guard failed: distinguish missing row from status race.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM requests WHERE id = ?)", string(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return marketplace.ErrNotFound
	}
	return marketplace.ErrConflict
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]marketplace.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []marketplace.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) InsertUser(ctx context.Context, user identity.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(user.ID),
		user.Name,
		user.Phone,
		user.CreatedAt.UTC().Format(time.RFC3339Nano),
		user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrPhoneTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id identity.UserID) (*identity.User, error) {
	return s.getUserBy(ctx, "id = ?", string(id))
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*identity.User, error) {
	return s.getUserBy(ctx, "phone = ?", phone)
}

func (s *Store) UpdateUser(ctx context.Context, user identity.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, phone = ?, updated_at = ?
		WHERE id = ?`,
		user.Name,
		user.Phone,
		user.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(user.ID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrPhoneTaken
		}
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) getUserBy(ctx context.Context, where string, arg any) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, created_at, updated_at FROM users WHERE "+where, arg)

	var (
		user               identity.User
		id                 string
		createdAt, updated string
	)
	err := row.Scan(&id, &user.Name, &user.Phone, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.ID = identity.UserID(id)
	if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &user, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*marketplace.Request, error) {
	var (
		req                  marketplace.Request
		id, userID, reqType  string
		status               string
		amountPaise          int64
		matchedWith          sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(&id, &userID, &reqType, &amountPaise, &req.Location, &status, &matchedWith, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	req.ID = marketplace.RequestID(id)
	req.UserID = marketplace.UserID(userID)
	req.Type = marketplace.RequestType(reqType)
	req.Amount = marketplace.NewAmountFromSubunits(amountPaise)
	req.Status = marketplace.RequestStatus(status)
	if matchedWith.Valid {
		ref := marketplace.RequestID(matchedWith.String)
		req.MatchedWith = &ref
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &req, nil
}

func matchedWithValue(matchedWith *marketplace.RequestID) any {
	if matchedWith == nil {
		return nil
	}
	return string(*matchedWith)
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 wraps UNIQUE failures in its own error type;
	// matching on the message avoids importing the driver's types here.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
