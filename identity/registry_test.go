package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashswap/exchange-engine/identity"
)

func newRegistry() *identity.Registry {
	return identity.NewRegistry(identity.NewMemoryStore())
}

func TestRegistry_Register_TrimsAndStores(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	user, err := r.Register(ctx, "  Asha  ", " +91-9999000001 ")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "+91-9999000001", user.Phone)

	got, err := r.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegistry_Register_MissingFields_Rejected(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	var valErr *identity.ValidationError

	_, err := r.Register(ctx, "", "+91-1")
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "name", valErr.Field)

	_, err = r.Register(ctx, "Asha", "   ")
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "phone", valErr.Field)
}

func TestRegistry_Register_DuplicatePhone_Rejected(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	_, err := r.Register(ctx, "Asha", "+91-9999000001")
	require.NoError(t, err)

	_, err = r.Register(ctx, "Bharat", "+91-9999000001")
	assert.ErrorIs(t, err, identity.ErrPhoneTaken)
}

func TestRegistry_FindByPhone(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	user, err := r.Register(ctx, "Asha", "+91-9999000001")
	require.NoError(t, err)

	got, err := r.FindByPhone(ctx, "+91-9999000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = r.FindByPhone(ctx, "+91-0000000000")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestRegistry_Update(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	base := time.Now()

	user, err := r.Register(ctx, "Asha", "+91-9999000001")
	require.NoError(t, err)

	updated, err := r.Update(ctx, user.ID, "Asha K", "+91-9999000002")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", updated.Name)
	assert.Equal(t, "+91-9999000002", updated.Phone)
	assert.False(t, updated.UpdatedAt.Before(base))

	// The old phone is released.
	_, err = r.FindByPhone(ctx, "+91-9999000001")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	got, err := r.FindByPhone(ctx, "+91-9999000002")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegistry_Update_Unknown_NotFound(t *testing.T) {
	r := newRegistry()

	_, err := r.Update(context.Background(), "missing", "Asha", "+91-1")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestRegistry_Update_PhoneTakenByOther_Rejected(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	_, err := r.Register(ctx, "Asha", "+91-9999000001")
	require.NoError(t, err)
	other, err := r.Register(ctx, "Bharat", "+91-9999000002")
	require.NoError(t, err)

	_, err = r.Update(ctx, other.ID, "Bharat", "+91-9999000001")
	assert.ErrorIs(t, err, identity.ErrPhoneTaken)
}
