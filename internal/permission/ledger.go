// Package permission is the ledger of per-file grants. A grant binds a
// capability set to a (file, grantee) pair; the owner of a file holds every
// capability without a grant. Admin bypass is not the ledger's concern.
package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/filevault/pkg/logger"
)

// Grant is the stored capability set of one grantee on one file.
type Grant struct {
	FileID       string    `json:"file_id"`
	GranteeID    string    `json:"user_id"`
	Capabilities Set       `json:"permissions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists grants. Upsert replaces the set atomically per pair.
// Get returns an empty Set when no grant exists and Delete is idempotent.
// Grants on a deleted file go with it through the file store.
type Store interface {
	Upsert(ctx context.Context, g *Grant) error
	Get(ctx context.Context, fileID, granteeID string) (Set, error)
	Delete(ctx context.Context, fileID, granteeID string) error
	ListByFile(ctx context.Context, fileID string) ([]*Grant, error)
	ListByGrantee(ctx context.Context, granteeID string) ([]*Grant, error)
}

// Ledger answers and records per-file permission questions.
type Ledger struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger for grant changes. A nil logger keeps the
// default no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.log = l
		}
	}
}

// WithClock overrides the time source for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) {
		if now != nil {
			lg.now = now
		}
	}
}

// NewLedger wires a Ledger over store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, log: logger.NewNope(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Grant sets granteeID's capabilities on fileID, replacing any previous
// set. An empty set removes the grant.
func (l *Ledger) Grant(ctx context.Context, fileID, granteeID string, caps Set) error {
	caps &= All
	if caps.Empty() {
		return l.Revoke(ctx, fileID, granteeID)
	}

	if err := l.store.Upsert(ctx, &Grant{
		FileID:       fileID,
		GranteeID:    granteeID,
		Capabilities: caps,
		UpdatedAt:    l.now().UTC(),
	}); err != nil {
		return err
	}

	l.log.InfoContext(ctx, "grant set",
		slog.String("file_id", fileID),
		slog.String("grantee_id", granteeID),
		slog.Any("capabilities", caps.Strings()),
	)
	return nil
}

// Revoke removes granteeID's grant on fileID, if any.
func (l *Ledger) Revoke(ctx context.Context, fileID, granteeID string) error {
	if err := l.store.Delete(ctx, fileID, granteeID); err != nil {
		return err
	}
	l.log.InfoContext(ctx, "grant revoked",
		slog.String("file_id", fileID),
		slog.String("grantee_id", granteeID),
	)
	return nil
}

// Check reports whether requesterID holds c on fileID. The owner always
// does; anyone else needs a stored grant containing c.
func (l *Ledger) Check(ctx context.Context, fileID, requesterID string, c Capability, ownerID string) (bool, error) {
	if requesterID != "" && requesterID == ownerID {
		return true, nil
	}
	caps, err := l.store.Get(ctx, fileID, requesterID)
	if err != nil {
		return false, err
	}
	return caps.Has(c), nil
}

// Capabilities returns the effective set requesterID holds on fileID.
func (l *Ledger) Capabilities(ctx context.Context, fileID, requesterID, ownerID string) (Set, error) {
	if requesterID != "" && requesterID == ownerID {
		return All, nil
	}
	caps, err := l.store.Get(ctx, fileID, requesterID)
	if err != nil {
		return 0, err
	}
	return caps & All, nil
}

// ListGrants returns the grants on fileID in no particular order.
func (l *Ledger) ListGrants(ctx context.Context, fileID string) ([]*Grant, error) {
	return l.store.ListByFile(ctx, fileID)
}

// ListGranted returns the grants held by granteeID across all files.
func (l *Ledger) ListGranted(ctx context.Context, granteeID string) ([]*Grant, error) {
	return l.store.ListByGrantee(ctx, granteeID)
}
