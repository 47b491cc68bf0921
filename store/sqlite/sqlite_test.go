package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashswap/exchange-engine/identity"
	"github.com/cashswap/exchange-engine/marketplace"
	"github.com/cashswap/exchange-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertRequest(t *testing.T, s *sqlite.Store, userID string, reqType marketplace.RequestType, paise int64, location string, createdAt time.Time) marketplace.Request {
	t.Helper()
	req := marketplace.NewRequest(
		marketplace.UserID(userID),
		reqType,
		marketplace.NewAmountFromSubunits(paise),
		location,
		createdAt,
	)
	require.NoError(t, s.Insert(context.Background(), req))
	return req
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func TestSQLite_InsertGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2025, time.June, 1, 10, 30, 0, 0, time.UTC)

	req := insertRequest(t, s, "user-1", marketplace.NeedCash, 50000, "CP Delhi", createdAt)

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, marketplace.UserID("user-1"), got.UserID)
	assert.Equal(t, marketplace.NeedCash, got.Type)
	assert.Equal(t, int64(50000), got.Amount.Subunits())
	assert.Equal(t, "CP Delhi", got.Location)
	assert.Equal(t, marketplace.StatusOpen, got.Status)
	assert.Nil(t, got.MatchedWith)
	assert.True(t, got.CreatedAt.Equal(createdAt))
}

func TestSQLite_Get_Unknown_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
}

func TestSQLite_CompareAndUpdate_Succeeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := insertRequest(t, s, "user-1", marketplace.NeedCash, 10000, "Delhi", time.Now().UTC())
	partner := marketplace.RequestID("partner-1")

	err := s.CompareAndUpdateStatus(ctx, req.ID, marketplace.StatusOpen, marketplace.StatusMatched, &partner)
	require.NoError(t, err)

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusMatched, got.Status)
	require.NotNil(t, got.MatchedWith)
	assert.Equal(t, partner, *got.MatchedWith)
}

func TestSQLite_CompareAndUpdate_WrongExpected_Conflict(t *testing.T) {
	// GIVEN: an OPEN request
	// WHEN: two sequential updates both expect OPEN
	// THEN: the first wins, the second gets ErrConflict

	s := newTestStore(t)
	ctx := context.Background()

	req := insertRequest(t, s, "user-1", marketplace.NeedCash, 10000, "Delhi", time.Now().UTC())

	require.NoError(t, s.CompareAndUpdateStatus(ctx, req.ID, marketplace.StatusOpen, marketplace.StatusCancelled, nil))

	err := s.CompareAndUpdateStatus(ctx, req.ID, marketplace.StatusOpen, marketplace.StatusMatched, nil)
	assert.ErrorIs(t, err, marketplace.ErrConflict)
}

func TestSQLite_CompareAndUpdate_Unknown_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.CompareAndUpdateStatus(context.Background(), "missing", marketplace.StatusOpen, marketplace.StatusMatched, nil)
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
}

func TestSQLite_CompareAndUpdate_ClearsMatchedWith(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := insertRequest(t, s, "user-1", marketplace.NeedCash, 10000, "Delhi", time.Now().UTC())
	partner := marketplace.RequestID("partner-1")
	require.NoError(t, s.CompareAndUpdateStatus(ctx, req.ID, marketplace.StatusOpen, marketplace.StatusMatched, &partner))

	// Unwind back to OPEN, clearing the reference.
	require.NoError(t, s.CompareAndUpdateStatus(ctx, req.ID, marketplace.StatusMatched, marketplace.StatusOpen, nil))

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MatchedWith)
}

func TestSQLite_ListByType_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	second := insertRequest(t, s, "user-1", marketplace.NeedCash, 100, "Delhi", base.Add(2*time.Minute))
	first := insertRequest(t, s, "user-2", marketplace.NeedCash, 200, "Delhi", base.Add(1*time.Minute))
	insertRequest(t, s, "user-3", marketplace.HaveCash, 300, "Delhi", base)
	cancelled := insertRequest(t, s, "user-4", marketplace.NeedCash, 400, "Delhi", base)
	require.NoError(t, s.CompareAndUpdateStatus(ctx, cancelled.ID, marketplace.StatusOpen, marketplace.StatusCancelled, nil))

	got, err := s.ListByType(ctx, marketplace.NeedCash, marketplace.StatusOpen)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)

	// No status filter returns everything of the type.
	all, err := s.ListByType(ctx, marketplace.NeedCash)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_ListByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	mine := insertRequest(t, s, "user-1", marketplace.NeedCash, 100, "Delhi", base)
	alsoMine := insertRequest(t, s, "user-1", marketplace.HaveCash, 200, "Delhi", base.Add(1*time.Minute))
	insertRequest(t, s, "user-2", marketplace.NeedCash, 300, "Delhi", base)

	got, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, mine.ID, got[0].ID)
	assert.Equal(t, alsoMine.ID, got[1].ID)
}

func TestSQLite_LifecycleOverSQLite_FullScenario(t *testing.T) {
	// GIVEN: the lifecycle engine running over the SQLite store
	// WHEN: match then complete
	// THEN: the same pair semantics hold as with the memory store

	s := newTestStore(t)
	ctx := context.Background()
	lc := marketplace.NewLifecycle(s)
	m := marketplace.NewMatcher(s, lc)
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	need := insertRequest(t, s, "user-a", marketplace.NeedCash, 50000, "CP Delhi", base)
	have := insertRequest(t, s, "user-b", marketplace.HaveCash, 50000, "CP Delhi", base.Add(1*time.Minute))

	result, err := m.ProposeMatch(ctx, need.ID)
	require.NoError(t, err)
	assert.Equal(t, have.ID, result.Partner.ID)

	completed, err := lc.Complete(ctx, need.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusCompleted, completed.Status)

	gotHave, err := s.Get(ctx, have.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusCompleted, gotHave.Status)
}

// =============================================================================
// USER STORE
// =============================================================================

func TestSQLite_Users_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := identity.NewUser("Asha", "+91-9999000001", time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.InsertUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "+91-9999000001", got.Phone)

	byPhone, err := s.GetUserByPhone(ctx, "+91-9999000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byPhone.ID)
}

func TestSQLite_Users_DuplicatePhone_Rejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := identity.NewUser("Asha", "+91-9999000001", time.Now().UTC())
	require.NoError(t, s.InsertUser(ctx, first))

	dup := identity.NewUser("Bharat", "+91-9999000001", time.Now().UTC())
	err := s.InsertUser(ctx, dup)
	assert.ErrorIs(t, err, identity.ErrPhoneTaken)
}

func TestSQLite_Users_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := identity.NewUser("Asha", "+91-9999000001", time.Now().UTC())
	require.NoError(t, s.InsertUser(ctx, user))

	user.Name = "Asha K"
	user.Phone = "+91-9999000002"
	user.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	assert.Equal(t, "+91-9999000002", got.Phone)

	_, err = s.GetUserByPhone(ctx, "+91-9999000001")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestSQLite_Users_UpdateUnknown_NotFound(t *testing.T) {
	s := newTestStore(t)

	ghost := identity.User{ID: "missing", Name: "X", Phone: "+91-0", UpdatedAt: time.Now().UTC()}
	err := s.UpdateUser(context.Background(), ghost)
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
