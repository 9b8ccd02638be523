package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/repository"
	"github.com/dmitrymomot/filevault/pkg/id"
	"github.com/dmitrymomot/filevault/pkg/logger"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

const maxNameLength = 255

// Registry enforces the permission model over file records and blobs.
type Registry struct {
	store      Store
	ledger     *permission.Ledger
	blobs      storage.Storage
	identities IdentityLookup
	opts       options
}

// New wires a Registry.
func New(store Store, ledger *permission.Ledger, blobs storage.Storage, identities IdentityLookup, opts ...Option) *Registry {
	o := options{
		log:       logger.NewNope(),
		maxUpload: DefaultMaxUploadBytes,
		keyPrefix: "files",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = timeNow
	}
	if o.reaper == nil {
		log := o.log
		o.reaper = ReaperFunc(func(ctx context.Context, key string) error {
			log.ErrorContext(ctx, "orphaned blob left in storage", slog.String("blob_key", key))
			return nil
		})
	}
	return &Registry{store: store, ledger: ledger, blobs: blobs, identities: identities, opts: o}
}

// Create records a file whose blob is already stored under blobRef.
// The actor becomes the owner.
func (r *Registry) Create(ctx context.Context, actor Actor, name, blobRef, contentType string, size int64) (*File, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if blobRef == "" {
		return nil, fmt.Errorf("%w: content reference is required", ErrInvalidInput)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = storage.MIMEOctetStream
	}

	now := r.opts.now().UTC()
	f := &File{
		ID:          id.NewULID(),
		OwnerID:     actor.ID,
		Name:        name,
		ContentRef:  blobRef,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Create(ctx, f); err != nil {
		return nil, err
	}

	r.opts.log.InfoContext(ctx, "file created",
		slog.String("file_id", f.ID),
		slog.String("owner_id", f.OwnerID),
		slog.Int64("size", f.Size),
	)
	return f, nil
}

// Upload stores r as a blob and records it. If the record cannot be
// created the blob is removed again.
func (r *Registry) Upload(ctx context.Context, actor Actor, name string, content io.Reader, size int64) (*File, error) {
	if _, err := cleanName(name); err != nil {
		return nil, err
	}
	if size > r.opts.maxUpload {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, r.opts.maxUpload)
	}

	rules := append([]storage.ValidationRule{storage.NotEmpty(), storage.MaxSize(r.opts.maxUpload)}, r.opts.rules...)
	info, err := r.blobs.Put(ctx, content, size,
		storage.WithTenant(actor.ID),
		storage.WithPrefix(r.opts.keyPrefix),
		storage.WithValidation(rules...),
	)
	if err != nil {
		return nil, uploadError(err)
	}

	f, err := r.Create(ctx, actor, name, info.Key, info.ContentType, info.Size)
	if err != nil {
		r.discardBlob(ctx, info.Key)
		return nil, err
	}
	return f, nil
}

func uploadError(err error) error {
	var verr *storage.FileValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%w: %s", ErrInvalidInput, verr.Message)
	}
	if errors.Is(err, storage.ErrSizeMismatch) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return repository.Unavailable(err)
}

// Read returns the file if the actor may read it.
func (r *Registry) Read(ctx context.Context, actor Actor, fileID string) (*File, error) {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, f, permission.Read); err != nil {
		return nil, err
	}
	return f, nil
}

// Inspect returns the file with the capabilities the actor holds on it.
// The owner and admins hold every capability.
func (r *Registry) Inspect(ctx context.Context, actor Actor, fileID string) (*SharedFile, error) {
	f, err := r.Read(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		return &SharedFile{File: f, Capabilities: permission.All}, nil
	}
	caps, err := r.ledger.Capabilities(ctx, f.ID, actor.ID, f.OwnerID)
	if err != nil {
		return nil, err
	}
	return &SharedFile{File: f, Capabilities: caps}, nil
}

// Download opens the file's content after a read check. The caller closes
// the reader.
func (r *Registry) Download(ctx context.Context, actor Actor, fileID string) (*File, io.ReadCloser, error) {
	f, err := r.Read(ctx, actor, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := r.blobs.Get(ctx, f.ContentRef)
	if err != nil {
		return nil, nil, repository.Unavailable(err)
	}
	return f, rc, nil
}

// Update applies p if the actor holds write. A patch without a name
// returns the file unchanged, UpdatedAt included.
func (r *Registry) Update(ctx context.Context, actor Actor, fileID string, p Patch) (*File, error) {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, f, permission.Write); err != nil {
		return nil, err
	}
	if p.Name == nil {
		return f, nil
	}

	name, err := cleanName(*p.Name)
	if err != nil {
		return nil, err
	}
	f.Name = name
	f.UpdatedAt = r.opts.now().UTC()

	if err := r.store.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the file if the actor holds delete. The record and its
// grants go first; the blob is removed afterwards and handed to the reaper
// if that fails. A failed record delete leaves the blob untouched.
func (r *Registry) Delete(ctx context.Context, actor Actor, fileID string) error {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return err
	}
	if err := r.authorize(ctx, actor, f, permission.Delete); err != nil {
		return err
	}
	return r.remove(ctx, f)
}

func (r *Registry) remove(ctx context.Context, f *File) error {
	if err := r.store.Delete(ctx, f.ID); err != nil {
		return err
	}
	r.opts.log.InfoContext(ctx, "file deleted", slog.String("file_id", f.ID))
	r.discardBlob(ctx, f.ContentRef)
	return nil
}

// discardBlob deletes a blob that no record points to any more. It runs
// detached from ctx cancellation so an aborted request cannot leak it.
func (r *Registry) discardBlob(ctx context.Context, key string) {
	ctx = context.WithoutCancel(ctx)
	err := r.blobs.Delete(ctx, key)
	if err == nil {
		return
	}

	r.opts.log.WarnContext(ctx, "blob delete failed, scheduling reap",
		slog.String("blob_key", key),
		slog.String("error", err.Error()),
	)
	if err := r.opts.reaper.Reap(ctx, key); err != nil {
		r.opts.log.ErrorContext(ctx, "blob reap scheduling failed",
			slog.String("blob_key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Share grants caps on the file to granteeID, replacing earlier grants.
// Only the owner or an admin may share.
func (r *Registry) Share(ctx context.Context, actor Actor, fileID, granteeID string, caps permission.Set) error {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return err
	}
	if err := r.requireOwner(ctx, actor, f); err != nil {
		return err
	}
	if !caps.Valid() {
		return fmt.Errorf("%w: unknown capability bits", ErrInvalidInput)
	}
	if granteeID == f.OwnerID {
		return ErrInvalidGrantee
	}
	if _, err := r.identities.Get(ctx, granteeID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrGranteeNotFound
		}
		return err
	}

	if err := r.ledger.Grant(ctx, f.ID, granteeID, caps); err != nil {
		if errors.Is(err, permission.ErrUnknownSubject) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Unshare removes granteeID's grant. Only the owner or an admin may unshare.
func (r *Registry) Unshare(ctx context.Context, actor Actor, fileID, granteeID string) error {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return err
	}
	if err := r.requireOwner(ctx, actor, f); err != nil {
		return err
	}
	return r.ledger.Revoke(ctx, f.ID, granteeID)
}

// Grants lists the sharing state of a file for its owner or an admin.
func (r *Registry) Grants(ctx context.Context, actor Actor, fileID string) ([]*permission.Grant, error) {
	f, err := r.load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := r.requireOwner(ctx, actor, f); err != nil {
		return nil, err
	}
	return r.ledger.ListGrants(ctx, f.ID)
}

// SharedFile is a file visible to a grantee together with its capabilities.
type SharedFile struct {
	*File
	Capabilities permission.Set `json:"permissions"`
}

// ListOwned returns the actor's own files.
func (r *Registry) ListOwned(ctx context.Context, actor Actor) ([]*File, error) {
	return r.store.ListByOwner(ctx, actor.ID)
}

// ListShared returns files other users granted the actor read on.
func (r *Registry) ListShared(ctx context.Context, actor Actor) ([]*SharedFile, error) {
	grants, err := r.ledger.ListGranted(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	caps := make(map[string]permission.Set, len(grants))
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Capabilities.Has(permission.Read) {
			caps[g.FileID] = g.Capabilities
			ids = append(ids, g.FileID)
		}
	}
	if len(ids) == 0 {
		return []*SharedFile{}, nil
	}

	files, err := r.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortFiles(files)

	out := make([]*SharedFile, 0, len(files))
	for _, f := range files {
		if f.OwnerID == actor.ID {
			continue
		}
		out = append(out, &SharedFile{File: f, Capabilities: caps[f.ID]})
	}
	return out, nil
}

// Listing is the combined index view.
type Listing struct {
	Owned  []*File       `json:"owned_files"`
	Shared []*SharedFile `json:"shared_files"`
}

// List fetches owned and shared files concurrently.
func (r *Registry) List(ctx context.Context, actor Actor) (*Listing, error) {
	var l Listing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		owned, err := r.ListOwned(gctx, actor)
		l.Owned = owned
		return err
	})
	g.Go(func() error {
		shared, err := r.ListShared(gctx, actor)
		l.Shared = shared
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if l.Owned == nil {
		l.Owned = []*File{}
	}
	return &l, nil
}

// PurgeOwner deletes every file owned by ownerID without permission
// checks. It backs identity removal and returns the number of files removed.
func (r *Registry) PurgeOwner(ctx context.Context, ownerID string) (int, error) {
	files, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		err := r.remove(ctx, f)
		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil:
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *Registry) load(ctx context.Context, fileID string) (*File, error) {
	if !id.IsULID(fileID) {
		return nil, ErrNotFound
	}
	return r.store.Get(ctx, fileID)
}

func (r *Registry) authorize(ctx context.Context, actor Actor, f *File, c permission.Capability) error {
	if actor.IsAdmin {
		return nil
	}
	ok, err := r.ledger.Check(ctx, f.ID, actor.ID, c, f.OwnerID)
	if err != nil {
		return err
	}
	if !ok {
		r.opts.log.DebugContext(ctx, "access denied",
			slog.String("file_id", f.ID),
			slog.String("actor_id", actor.ID),
			slog.String("capability", c.String()),
		)
		return ErrForbidden
	}
	return nil
}

func (r *Registry) requireOwner(ctx context.Context, actor Actor, f *File) error {
	if actor.IsAdmin || (actor.ID != "" && actor.ID == f.OwnerID) {
		return nil
	}
	r.opts.log.DebugContext(ctx, "sharing denied",
		slog.String("file_id", f.ID),
		slog.String("actor_id", actor.ID),
	)
	return ErrForbidden
}

// cleanName keeps the last path element of a client-supplied name and
// rejects control characters.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !utf8.ValidString(name) || strings.ContainsFunc(name, unicode.IsControl) {
		return "", fmt.Errorf("%w: name contains invalid characters", ErrInvalidInput)
	}
	name = norm.NFC.String(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	return name, nil
}
