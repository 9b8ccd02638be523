package filevault_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault"
	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
	"github.com/dmitrymomot/filevault/internal/token"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

func TestNewCoreRequiresStores(t *testing.T) {
	t.Parallel()

	db := memory.New()

	_, err := filevault.NewCore(filevault.Stores{Identities: db.Identities()}, storage.NewMemory())
	require.ErrorIs(t, err, filevault.ErrMissingStore)
	assert.Contains(t, err.Error(), "tokens")
	assert.Contains(t, err.Error(), "grants")

	_, err = filevault.NewCore(filevault.Stores{
		Identities: db.Identities(),
		Tokens:     db.Tokens(),
		Files:      db.Files(),
		Grants:     db.Grants(),
	}, nil)
	require.ErrorIs(t, err, filevault.ErrMissingStore)
}

func TestDeleteIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.New()
	blobs := storage.NewMemory()
	core, err := filevault.NewCore(filevault.Stores{
		Identities: db.Identities(),
		Tokens:     db.Tokens(),
		Files:      db.Files(),
		Grants:     db.Grants(),
	}, blobs, filevault.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	alice, err := core.Identities.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)
	bob, err := core.Identities.Register(ctx, "Bob", "bob@example.com", "secret-two", false)
	require.NoError(t, err)
	aliceActor := registry.Actor{ID: alice.ID}
	bobActor := registry.Actor{ID: bob.ID}

	owned, err := core.Files.Upload(ctx, aliceActor, "a.txt", strings.NewReader("alice"), 5)
	require.NoError(t, err)
	bobs, err := core.Files.Upload(ctx, bobActor, "b.txt", strings.NewReader("bob"), 3)
	require.NoError(t, err)
	require.NoError(t, core.Files.Share(ctx, bobActor, bobs.ID, alice.ID, permission.NewSet(permission.Read)))

	_, bearer, err := core.Tokens.Issue(ctx, alice.ID)
	require.NoError(t, err)

	require.NoError(t, core.DeleteIdentity(ctx, alice.ID))

	_, err = core.Identities.Get(ctx, alice.ID)
	require.ErrorIs(t, err, identity.ErrNotFound)

	_, err = core.Tokens.Verify(ctx, bearer)
	require.ErrorIs(t, err, token.ErrTokenNotFound)

	_, err = core.Files.Read(ctx, bobActor, owned.ID)
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.False(t, blobs.Has(owned.ContentRef))
	assert.True(t, blobs.Has(bobs.ContentRef))

	grants, err := core.Files.Grants(ctx, bobActor, bobs.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	err = core.DeleteIdentity(ctx, alice.ID)
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestNewMemoryCoreOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	core, err := filevault.NewMemoryCore(
		filevault.WithBcryptCost(bcrypt.MinCost),
		filevault.WithMaxUploadBytes(4),
		filevault.WithSingleTokenPerLogin(true),
	)
	require.NoError(t, err)

	ident, err := core.Identities.Register(ctx, "Alice", "alice@example.com", "secret-one", false)
	require.NoError(t, err)

	_, err = core.Files.Upload(ctx, registry.Actor{ID: ident.ID}, "big.txt", strings.NewReader("12345"), 5)
	require.ErrorIs(t, err, registry.ErrInvalidInput)

	_, first, err := core.Tokens.IssueForLogin(ctx, ident.ID)
	require.NoError(t, err)
	_, second, err := core.Tokens.IssueForLogin(ctx, ident.ID)
	require.NoError(t, err)

	_, err = core.Tokens.Verify(ctx, first)
	require.ErrorIs(t, err, token.ErrTokenNotFound)
	got, err := core.Tokens.Verify(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, got)

	assert.Len(t, core.Handlers(), 3)
}
