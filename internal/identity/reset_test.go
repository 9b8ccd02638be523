package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
)

type resetFixture struct {
	svc   *identity.Service
	mu    sync.Mutex
	now   time.Time
	alice *identity.Identity
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	f := &resetFixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc, err := identity.NewService(memory.New().Identities(),
		identity.WithCost(bcrypt.MinCost),
		identity.WithClock(f.clock),
		identity.WithResetTokenTTL(time.Hour),
	)
	require.NoError(t, err)
	f.svc = svc

	f.alice, err = svc.Register(context.Background(), "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)
	return f
}

func (f *resetFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *resetFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCreateResetToken(t *testing.T) {
	t.Parallel()

	f := newResetFixture(t)
	ctx := context.Background()

	tok, err := f.svc.CreateResetToken(ctx, " ALICE@example.com ")
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	_, err = f.svc.CreateResetToken(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	t.Run("replaces password and consumes token", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		tok, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)

		got, err := f.svc.ResetPassword(ctx, "alice@example.com", tok, "secret-two")
		require.NoError(t, err)
		assert.Equal(t, f.alice.ID, got.ID)

		_, err = f.svc.VerifyCredentials(ctx, "alice@example.com", "secret-two")
		require.NoError(t, err)
		_, err = f.svc.VerifyCredentials(ctx, "alice@example.com", "secret-one")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

		_, err = f.svc.ResetPassword(ctx, "alice@example.com", tok, "secret-three")
		assert.ErrorIs(t, err, identity.ErrInvalidResetToken)
	})

	t.Run("only the latest token is live", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		first, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)
		second, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)

		_, err = f.svc.ResetPassword(ctx, "alice@example.com", first, "secret-two")
		require.ErrorIs(t, err, identity.ErrInvalidResetToken)
		_, err = f.svc.ResetPassword(ctx, "alice@example.com", second, "secret-two")
		require.NoError(t, err)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		tok, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)

		f.advance(time.Hour + time.Second)
		_, err = f.svc.ResetPassword(ctx, "alice@example.com", tok, "secret-two")
		assert.ErrorIs(t, err, identity.ErrInvalidResetToken)

		_, err = f.svc.VerifyCredentials(ctx, "alice@example.com", "secret-one")
		assert.NoError(t, err)
	})

	t.Run("password change drops pending token", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		tok, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NoError(t, f.svc.UpdatePassword(ctx, f.alice.ID, "secret-two"))

		_, err = f.svc.ResetPassword(ctx, "alice@example.com", tok, "secret-three")
		assert.ErrorIs(t, err, identity.ErrInvalidResetToken)
	})

	t.Run("email change drops pending token", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		tok, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)
		email := "alice@new.example.com"
		_, err = f.svc.UpdateProfile(ctx, f.alice.ID, identity.Patch{Email: &email})
		require.NoError(t, err)

		_, err = f.svc.ResetPassword(ctx, email, tok, "secret-two")
		assert.ErrorIs(t, err, identity.ErrInvalidResetToken)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		f := newResetFixture(t)
		ctx := context.Background()

		tok, err := f.svc.CreateResetToken(ctx, "alice@example.com")
		require.NoError(t, err)
		last := byte('A')
		if tok[len(tok)-1] == last {
			last = 'B'
		}
		tampered := tok[:len(tok)-1] + string(last)

		tests := []struct {
			name, email, token, password string
			want                         error
		}{
			{"unknown email", "nobody@example.com", tok, "secret-two", identity.ErrInvalidResetToken},
			{"wrong token", "alice@example.com", tampered, "secret-two", identity.ErrInvalidResetToken},
			{"empty token", "alice@example.com", "", "secret-two", identity.ErrInvalidResetToken},
			{"short password", "alice@example.com", tok, "short", identity.ErrInvalidInput},
		}
		for _, tt := range tests {
			_, err := f.svc.ResetPassword(ctx, tt.email, tt.token, tt.password)
			assert.ErrorIs(t, err, tt.want, tt.name)
		}

		// Failed attempts leave the live token redeemable.
		_, err = f.svc.ResetPassword(ctx, "alice@example.com", tok, "secret-two")
		assert.NoError(t, err)
	})
}
