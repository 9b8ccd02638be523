package identity_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
)

func newService(t *testing.T) *identity.Service {
	t.Helper()
	svc, err := identity.NewService(memory.New().Identities(), identity.WithCost(bcrypt.MinCost))
	require.NoError(t, err)
	return svc
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("stores hash not password", func(t *testing.T) {
		t.Parallel()
		svc := newService(t)

		ident, err := svc.Register(context.Background(), "Alice", " Alice@Example.com ", "secret-one", false)
		require.NoError(t, err)
		assert.NotEmpty(t, ident.ID)
		assert.Equal(t, "alice@example.com", ident.Email)
		assert.NotEqual(t, []byte("secret-one"), ident.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte("secret-one")))
	})

	t.Run("rejects duplicate email case-insensitively", func(t *testing.T) {
		t.Parallel()
		svc := newService(t)
		ctx := context.Background()

		_, err := svc.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
		require.NoError(t, err)
		_, err = svc.Register(ctx, "Other", "ALICE@example.com", "secret-two", false)
		assert.ErrorIs(t, err, identity.ErrDuplicateEmail)
	})

	tests := []struct {
		name, userName, email, password string
	}{
		{"empty name", "  ", "a@example.com", "long-enough"},
		{"long name", strings.Repeat("n", identity.MaxNameLength+1), "a@example.com", "long-enough"},
		{"bad email", "A", "not-an-email", "long-enough"},
		{"display name email", "A", "Alice <a@example.com>", "long-enough"},
		{"short password", "A", "a@example.com", "short"},
		{"long password", "A", "a@example.com", strings.Repeat("p", identity.MaxPasswordBytes+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newService(t).Register(context.Background(), tt.userName, tt.email, tt.password, false)
			assert.ErrorIs(t, err, identity.ErrInvalidInput)
		})
	}
}

func TestVerifyCredentials(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)

	got, err := svc.VerifyCredentials(ctx, "ALICE@example.com", "secret-one")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = svc.VerifyCredentials(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = svc.VerifyCredentials(ctx, "nobody@example.com", "secret-one")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdatePassword(ctx, alice.ID, "short"), identity.ErrInvalidInput)
	require.NoError(t, svc.UpdatePassword(ctx, alice.ID, "secret-two"))

	_, err = svc.VerifyCredentials(ctx, "alice@example.com", "secret-one")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = svc.VerifyCredentials(ctx, "alice@example.com", "secret-two")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.UpdatePassword(ctx, "missing", "secret-two"), identity.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Bob", "bob@example.com", "secret-one", false)
	require.NoError(t, err)

	name := "Alice Liddell"
	admin := true
	got, err := svc.UpdateProfile(ctx, alice.ID, identity.Patch{Name: &name, IsAdmin: &admin})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.True(t, got.IsAdmin)

	taken := "bob@example.com"
	_, err = svc.UpdateProfile(ctx, alice.ID, identity.Patch{Email: &taken})
	assert.ErrorIs(t, err, identity.ErrDuplicateEmail)

	moved := "alice@wonderland.example"
	_, err = svc.UpdateProfile(ctx, alice.ID, identity.Patch{Email: &moved})
	require.NoError(t, err)
	_, err = svc.VerifyCredentials(ctx, moved, "secret-one")
	assert.NoError(t, err)

	unchanged, err := svc.UpdateProfile(ctx, alice.ID, identity.Patch{})
	require.NoError(t, err)
	assert.Equal(t, moved, unchanged.Email)
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.Register(ctx, "User", email, "secret-one", false)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, all[0].ID))
	_, err = svc.Get(ctx, all[0].ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, all[0].ID), identity.ErrNotFound)
}
