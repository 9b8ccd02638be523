package registry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/repository"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
	"github.com/dmitrymomot/filevault/pkg/id"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

type fixture struct {
	db         *memory.Database
	identities *identity.Service
	ledger     *permission.Ledger
	blobs      *storage.MemoryStorage
	registry   *registry.Registry
	alice      registry.Actor
	bob        registry.Actor
	admin      registry.Actor
}

type fixtureConfig struct {
	files registry.Store
	blobs storage.Storage
	opts  []registry.Option
}

func newFixture(t *testing.T, configure ...func(*fixture, *fixtureConfig)) *fixture {
	t.Helper()
	ctx := context.Background()

	db := memory.New()
	identities, err := identity.NewService(db.Identities(), identity.WithCost(bcrypt.MinCost))
	require.NoError(t, err)

	f := &fixture{
		db:         db,
		identities: identities,
		ledger:     permission.NewLedger(db.Grants()),
		blobs:      storage.NewMemory(),
	}
	cfg := &fixtureConfig{files: db.Files(), blobs: f.blobs}
	for _, c := range configure {
		c(f, cfg)
	}
	f.registry = registry.New(cfg.files, f.ledger, cfg.blobs, identities, cfg.opts...)

	register := func(email string, admin bool) registry.Actor {
		ident, err := identities.Register(ctx, "User", email, "secret-one", admin)
		require.NoError(t, err)
		return registry.Actor{ID: ident.ID, IsAdmin: ident.IsAdmin}
	}
	f.alice = register("alice@example.com", false)
	f.bob = register("bob@example.com", false)
	f.admin = register("admin@example.com", true)
	return f
}

func (f *fixture) upload(t *testing.T, actor registry.Actor, name, content string) *registry.File {
	t.Helper()
	file, err := f.registry.Upload(context.Background(), actor, name, strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	return file
}

func TestUpload(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	file := f.upload(t, f.alice, "../notes/report.txt", "hello world")
	assert.True(t, id.IsULID(file.ID))
	assert.Equal(t, f.alice.ID, file.OwnerID)
	assert.Equal(t, "report.txt", file.Name)
	assert.Equal(t, int64(11), file.Size)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/plain"))
	assert.True(t, strings.HasPrefix(file.ContentRef, f.alice.ID+"/files/"))
	assert.True(t, f.blobs.Has(file.ContentRef))

	got, rc, err := f.registry.Download(ctx, f.alice, file.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, file.ID, got.ID)
}

func TestUploadNormalizesName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// "cafe" with a combining acute accent is stored in composed form.
	file := f.upload(t, f.alice, "cafe\u0301.txt", "data")
	assert.Equal(t, "caf\u00e9.txt", file.Name)
}

func TestUploadRejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(_ *fixture, c *fixtureConfig) {
		c.opts = append(c.opts, registry.WithMaxUploadBytes(8))
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content string
		size    int64
	}{
		{"empty name", "  ", "data", 4},
		{"dot name", "..", "data", 4},
		{"control character", "a\x00b", "data", 4},
		{"empty content", "a.txt", "", 0},
		{"too large", "a.txt", "123456789", 9},
		{"size mismatch", "a.txt", "1234", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Upload(ctx, f.alice, tt.file, strings.NewReader(tt.content), tt.size)
			assert.ErrorIs(t, err, registry.ErrInvalidInput)
		})
	}
	assert.Zero(t, f.blobs.Len())
}

func TestUploadRecordFailureRemovesBlob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ghost := registry.Actor{ID: id.NewULID()}

	_, err := f.registry.Upload(context.Background(), ghost, "a.txt", strings.NewReader("data"), 4)
	require.Error(t, err)
	assert.Zero(t, f.blobs.Len())
}

func TestAccessChecks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")
	name := "renamed.txt"

	_, err := f.registry.Read(ctx, f.bob, file.ID)
	assert.ErrorIs(t, err, registry.ErrForbidden)
	_, _, err = f.registry.Download(ctx, f.bob, file.ID)
	assert.ErrorIs(t, err, registry.ErrForbidden)
	_, err = f.registry.Update(ctx, f.bob, file.ID, registry.Patch{Name: &name})
	assert.ErrorIs(t, err, registry.ErrForbidden)
	assert.ErrorIs(t, f.registry.Delete(ctx, f.bob, file.ID), registry.ErrForbidden)

	_, err = f.registry.Read(ctx, f.admin, file.ID)
	assert.NoError(t, err)

	_, err = f.registry.Read(ctx, f.alice, "not-a-ulid")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = f.registry.Read(ctx, f.alice, id.NewULID())
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestAdminBypass(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	name := "renamed.txt"

	tests := []struct {
		name string
		call func(fileID string) error
	}{
		{"read", func(fileID string) error {
			_, err := f.registry.Read(ctx, f.admin, fileID)
			return err
		}},
		{"inspect", func(fileID string) error {
			_, err := f.registry.Inspect(ctx, f.admin, fileID)
			return err
		}},
		{"download", func(fileID string) error {
			_, rc, err := f.registry.Download(ctx, f.admin, fileID)
			if err != nil {
				return err
			}
			return rc.Close()
		}},
		{"update", func(fileID string) error {
			_, err := f.registry.Update(ctx, f.admin, fileID, registry.Patch{Name: &name})
			return err
		}},
		{"share", func(fileID string) error {
			return f.registry.Share(ctx, f.admin, fileID, f.bob.ID, permission.NewSet(permission.Read))
		}},
		{"grants", func(fileID string) error {
			_, err := f.registry.Grants(ctx, f.admin, fileID)
			return err
		}},
		{"unshare", func(fileID string) error {
			return f.registry.Unshare(ctx, f.admin, fileID, f.bob.ID)
		}},
		{"delete", func(fileID string) error {
			return f.registry.Delete(ctx, f.admin, fileID)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := f.upload(t, f.alice, "a.txt", "data")
			assert.NoError(t, tt.call(file.ID))
		})
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")
	carol := registry.Actor{ID: id.NewULID()}
	require.NoError(t, f.registry.Share(ctx, f.alice, file.ID, f.bob.ID,
		permission.NewSet(permission.Read, permission.Delete)))

	tests := []struct {
		name    string
		actor   registry.Actor
		want    permission.Set
		wantErr error
	}{
		{"owner", f.alice, permission.All, nil},
		{"grantee", f.bob, permission.NewSet(permission.Read, permission.Delete), nil},
		{"admin", f.admin, permission.All, nil},
		{"stranger", carol, 0, registry.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.registry.Inspect(ctx, tt.actor, file.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, file.ID, got.ID)
			assert.Equal(t, tt.want, got.Capabilities)
		})
	}
}

func TestUpdateWithoutNameKeepsFile(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		tick = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	f := newFixture(t, func(_ *fixture, c *fixtureConfig) {
		c.opts = append(c.opts, registry.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick = tick.Add(time.Minute)
			return tick
		}))
	})
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")

	got, err := f.registry.Update(ctx, f.alice, file.ID, registry.Patch{})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.True(t, file.UpdatedAt.Equal(got.UpdatedAt))

	stored, err := f.registry.Read(ctx, f.alice, file.ID)
	require.NoError(t, err)
	assert.True(t, file.UpdatedAt.Equal(stored.UpdatedAt))

	_, err = f.registry.Update(ctx, f.bob, file.ID, registry.Patch{})
	assert.ErrorIs(t, err, registry.ErrForbidden)
}

func TestShareAndUnshare(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")

	require.NoError(t, f.registry.Share(ctx, f.alice, file.ID, f.bob.ID, permission.NewSet(permission.Read)))
	_, err := f.registry.Read(ctx, f.bob, file.ID)
	require.NoError(t, err)

	name := "b.txt"
	_, err = f.registry.Update(ctx, f.bob, file.ID, registry.Patch{Name: &name})
	assert.ErrorIs(t, err, registry.ErrForbidden)

	listing, err := f.registry.List(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, listing.Owned)
	require.Len(t, listing.Shared, 1)
	assert.Equal(t, file.ID, listing.Shared[0].ID)
	assert.Equal(t, permission.NewSet(permission.Read), listing.Shared[0].Capabilities)

	require.NoError(t, f.registry.Unshare(ctx, f.alice, file.ID, f.bob.ID))
	_, err = f.registry.Read(ctx, f.bob, file.ID)
	assert.ErrorIs(t, err, registry.ErrForbidden)

	shared, err := f.registry.ListShared(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestShareWriteOnlyIsNotListed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")

	require.NoError(t, f.registry.Share(ctx, f.alice, file.ID, f.bob.ID, permission.NewSet(permission.Write)))

	name := "b.txt"
	updated, err := f.registry.Update(ctx, f.bob, file.ID, registry.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "b.txt", updated.Name)

	shared, err := f.registry.ListShared(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestShareRules(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")
	read := permission.NewSet(permission.Read)

	tests := []struct {
		name    string
		actor   registry.Actor
		fileID  string
		grantee string
		caps    permission.Set
		want    error
	}{
		{"non owner", f.bob, file.ID, f.admin.ID, read, registry.ErrForbidden},
		{"grantee is owner", f.alice, file.ID, f.alice.ID, read, registry.ErrInvalidGrantee},
		{"unknown grantee", f.alice, file.ID, id.NewULID(), read, registry.ErrGranteeNotFound},
		{"unknown file", f.alice, id.NewULID(), f.bob.ID, read, registry.ErrNotFound},
		{"invalid bits", f.alice, file.ID, f.bob.ID, permission.Set(1 << 6), registry.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.registry.Share(ctx, tt.actor, tt.fileID, tt.grantee, tt.caps)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, f.registry.Share(ctx, f.admin, file.ID, f.bob.ID, read))
	grants, err := f.registry.Grants(ctx, f.alice, file.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	_, err = f.registry.Grants(ctx, f.bob, file.ID)
	assert.ErrorIs(t, err, registry.ErrForbidden)
	assert.ErrorIs(t, f.registry.Unshare(ctx, f.bob, file.ID, f.bob.ID), registry.ErrForbidden)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, f.alice, "a.txt", "data")
	require.NoError(t, f.registry.Share(ctx, f.alice, file.ID, f.bob.ID, permission.All))

	require.NoError(t, f.registry.Delete(ctx, f.bob, file.ID))

	_, err := f.registry.Read(ctx, f.alice, file.ID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	grants, err := f.ledger.ListGrants(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
	assert.False(t, f.blobs.Has(file.ContentRef))

	assert.ErrorIs(t, f.registry.Delete(ctx, f.alice, file.ID), registry.ErrNotFound)
}

type failingDeleteStore struct {
	registry.Store
}

func (s failingDeleteStore) Delete(context.Context, string) error {
	return repository.Unavailable(errors.New("connection reset"))
}

type failingDeleteBlobs struct {
	*storage.MemoryStorage
}

func (b failingDeleteBlobs) Delete(context.Context, string) error {
	return repository.Unavailable(errors.New("bucket offline"))
}

type recordingReaper struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingReaper) Reap(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingReaper) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestDeleteOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("record delete failure keeps blob", func(t *testing.T) {
		t.Parallel()

		reaper := &recordingReaper{}
		f := newFixture(t, func(f *fixture, c *fixtureConfig) {
			c.files = failingDeleteStore{Store: f.db.Files()}
			c.opts = append(c.opts, registry.WithReaper(reaper))
		})
		file := f.upload(t, f.alice, "a.txt", "data")

		err := f.registry.Delete(ctx, f.alice, file.ID)
		assert.ErrorIs(t, err, repository.ErrBackendUnavailable)
		assert.True(t, f.blobs.Has(file.ContentRef))
		assert.Empty(t, reaper.Keys())

		_, err = f.registry.Read(ctx, f.alice, file.ID)
		assert.NoError(t, err)
	})

	t.Run("blob delete failure schedules reap", func(t *testing.T) {
		t.Parallel()

		reaper := &recordingReaper{}
		f := newFixture(t, func(f *fixture, c *fixtureConfig) {
			c.blobs = failingDeleteBlobs{MemoryStorage: f.blobs}
			c.opts = append(c.opts, registry.WithReaper(reaper))
		})
		file := f.upload(t, f.alice, "a.txt", "data")

		require.NoError(t, f.registry.Delete(ctx, f.alice, file.ID))
		_, err := f.registry.Read(ctx, f.alice, file.ID)
		assert.ErrorIs(t, err, registry.ErrNotFound)
		assert.Equal(t, []string{file.ContentRef}, reaper.Keys())
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	info, err := f.blobs.Put(ctx, bytes.NewReader([]byte("data")), 4)
	require.NoError(t, err)

	file, err := f.registry.Create(ctx, f.alice, "a.bin", info.Key, "", 4)
	require.NoError(t, err)
	assert.Equal(t, storage.MIMEOctetStream, file.ContentType)

	_, err = f.registry.Create(ctx, f.alice, "a.bin", "", "", 4)
	assert.ErrorIs(t, err, registry.ErrInvalidInput)
	_, err = f.registry.Create(ctx, f.alice, "a.bin", info.Key, "", -1)
	assert.ErrorIs(t, err, registry.ErrInvalidInput)
}

func TestListOwnedOrder(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		tick = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	f := newFixture(t, func(_ *fixture, c *fixtureConfig) {
		c.opts = append(c.opts, registry.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick = tick.Add(time.Second)
			return tick
		}))
	})
	first := f.upload(t, f.alice, "1.txt", "one")
	second := f.upload(t, f.alice, "2.txt", "two")
	f.upload(t, f.bob, "3.txt", "three")

	owned, err := f.registry.ListOwned(context.Background(), f.alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, second.ID, owned[0].ID)
	assert.Equal(t, first.ID, owned[1].ID)
}

func TestPurgeOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, f.alice, "a.txt", "a")
	b := f.upload(t, f.alice, "b.txt", "b")
	kept := f.upload(t, f.bob, "c.txt", "c")

	n, err := f.registry.PurgeOwner(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, f.blobs.Has(a.ContentRef))
	assert.False(t, f.blobs.Has(b.ContentRef))
	assert.True(t, f.blobs.Has(kept.ContentRef))
}

// staleListStore reports files that a concurrent delete already removed.
type staleListStore struct {
	registry.Store
	stale []*registry.File
}

func (s staleListStore) ListByOwner(ctx context.Context, ownerID string) ([]*registry.File, error) {
	files, err := s.Store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return append(files, s.stale...), nil
}

func TestPurgeOwnerSkipsVanishedFiles(t *testing.T) {
	t.Parallel()

	gone := &registry.File{ID: id.NewULID(), ContentRef: "gone/blob"}
	f := newFixture(t, func(f *fixture, c *fixtureConfig) {
		c.files = staleListStore{Store: f.db.Files(), stale: []*registry.File{gone}}
	})
	gone.OwnerID = f.alice.ID
	a := f.upload(t, f.alice, "a.txt", "a")

	n, err := f.registry.PurgeOwner(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, f.blobs.Has(a.ContentRef))
}
