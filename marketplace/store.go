/*
store.go - Persistence interface for exchange requests

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

MUTATION CONTRACT:
  CompareAndUpdateStatus is the ONLY mutation entry point after Insert.
  It is a conditional update: it succeeds only if the stored status
  still equals the expected status, otherwise it fails with ErrConflict.
  All concurrency safety in the engine rests on this primitive - there
  is no global lock anywhere.

NO DELETES:
  Requests are never deleted. Cancelled and completed requests are
  retained as history.

IMPLEMENTATIONS:
  - marketplace/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go:      Embedded SQLite
  - store/postgres/postgres.go:  PostgreSQL via pgx

SEE ALSO:
  - lifecycle.go: drives all CompareAndUpdateStatus calls
*/
package marketplace

import "context"

// RequestStore handles persistence of exchange requests.
type RequestStore interface {
	// Insert persists a new request. The request's ID must be unique.
	Insert(ctx context.Context, req Request) error

	// Get returns the request with the given ID, or ErrNotFound.
	Get(ctx context.Context, id RequestID) (*Request, error)

	// ListByType returns requests of the given type, ordered by
	// CreatedAt ascending. If statuses is non-empty, only requests in
	// one of those statuses are returned.
	ListByType(ctx context.Context, reqType RequestType, statuses ...RequestStatus) ([]Request, error)

	// ListByUser returns all requests posted by a user, ordered by
	// CreatedAt ascending.
	ListByUser(ctx context.Context, userID UserID) ([]Request, error)

	// CompareAndUpdateStatus atomically moves a request from expected
	// to next, setting matched_with to matchedWith (nil clears it).
	// Returns ErrConflict if the stored status is not expected at the
	// time of the update, ErrNotFound if the request doesn't exist.
	CompareAndUpdateStatus(ctx context.Context, id RequestID, expected, next RequestStatus, matchedWith *RequestID) error
}
