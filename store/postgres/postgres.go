/*
Package postgres provides a PostgreSQL-backed implementation of the
storage interfaces using pgx.

PURPOSE:
  Same contract as store/sqlite, backed by a pgxpool connection pool
  for production deployments. The conditional update maps directly to
  an UPDATE guarded by the expected status; Postgres row-level locking
  makes the guard and the write atomic.

SCHEMA:
  Auto-migrated on New(). Amounts are BIGINT paise, timestamps are
  TIMESTAMPTZ.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - marketplace/store.go: RequestStore contract
  - store/sqlite/sqlite.go: embedded-database implementation
*/
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cashswap/exchange-engine/identity"
	"github.com/cashswap/exchange-engine/marketplace"
)

// Store implements the storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store from a connection string and migrates the schema.
func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		req_type TEXT NOT NULL,
		amount_paise BIGINT NOT NULL,
		location TEXT NOT NULL,
		status TEXT NOT NULL,
		matched_with TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_type_status
		ON requests(req_type, status, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON requests(user_id, created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Insert(ctx context.Context, req marketplace.Request) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO requests (id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(req.ID),
		string(req.UserID),
		string(req.Type),
		req.Amount.Subunits(),
		req.Location,
		string(req.Status),
		matchedWithValue(req.MatchedWith),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id marketplace.RequestID) (*marketplace.Request, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at
		FROM requests WHERE id = $1`, string(id))

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
		FROM requests WHERE req_type = $1`
	args := []any{string(reqType)}

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += " AND status = ANY($2)"
		args = append(args, names)
	}
	query += " ORDER BY created_at ASC, id ASC"

	return s.queryRequests(ctx, query, args...)
}

func (s *Store) ListByUser(ctx context.Context, userID marketplace.UserID) ([]marketplace.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, user_id, req_type, amount_paise, location, status, matched_with, created_at, updated_at
		FROM requests WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, string(userID))
}

func (s *Store) CompareAndUpdateStatus(ctx context.Context, id marketplace.RequestID, expected, next marketplace.RequestStatus, matchedWith *marketplace.RequestID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE requests SET status = $1, matched_with = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		string(next),
		matchedWithValue(matchedWith),
		string(id),
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)", string(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return marketplace.ErrNotFound
	}
	return marketplace.ErrConflict
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]marketplace.Request, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(user.ID), user.Name, user.Phone, user.CreatedAt, user.UpdatedAt,
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
	return s.getUserBy(ctx, "id = $1", string(id))
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*identity.User, error) {
	return s.getUserBy(ctx, "phone = $1", phone)
}

func (s *Store) UpdateUser(ctx context.Context, user identity.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $1, phone = $2, updated_at = $3
		WHERE id = $4`,
		user.Name, user.Phone, user.UpdatedAt, string(user.ID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrPhoneTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) getUserBy(ctx context.Context, where string, arg any) (*identity.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, name, phone, created_at, updated_at FROM users WHERE "+where, arg)

	var (
		user identity.User
		id   string
	)
	err := row.Scan(&id, &user.Name, &user.Phone, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.ID = identity.UserID(id)
	return &user, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func scanRequest(row pgx.Row) (*marketplace.Request, error) {
	var (
		req                 marketplace.Request
		id, userID, reqType string
		status              string
		amountPaise         int64
		matchedWith         *string
	)

	err := row.Scan(&id, &userID, &reqType, &amountPaise, &req.Location, &status, &matchedWith, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}

	req.ID = marketplace.RequestID(id)
	req.UserID = marketplace.UserID(userID)
	req.Type = marketplace.RequestType(reqType)
	req.Amount = marketplace.NewAmountFromSubunits(amountPaise)
	req.Status = marketplace.RequestStatus(status)
	if matchedWith != nil {
		ref := marketplace.RequestID(*matchedWith)
		req.MatchedWith = &ref
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
