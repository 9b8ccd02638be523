package filevault

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/filevault/internal/httpapi"
	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
	"github.com/dmitrymomot/filevault/internal/token"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

// ErrMissingStore is returned when Stores lacks an implementation.
var ErrMissingStore = errors.New("filevault: missing store")

// Stores bundles one implementation of every persistence contract.
type Stores struct {
	Identities identity.Store
	Tokens     token.Store
	Files      registry.Store
	Grants     permission.Store
}

func (s Stores) validate() error {
	var errs []error
	if s.Identities == nil {
		errs = append(errs, errors.New("identities"))
	}
	if s.Tokens == nil {
		errs = append(errs, errors.New("tokens"))
	}
	if s.Files == nil {
		errs = append(errs, errors.New("files"))
	}
	if s.Grants == nil {
		errs = append(errs, errors.New("grants"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrMissingStore}, errs...)...)
	}
	return nil
}

// Core wires the credential store, token authority, permission ledger and
// file registry over one set of stores and a blob store.
type Core struct {
	Identities *identity.Service
	Tokens     *token.Authority
	Ledger     *permission.Ledger
	Files      *registry.Registry

	cfg *config
}

// NewCore assembles the components.
func NewCore(stores Stores, blobs storage.Storage, opts ...Option) (*Core, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if blobs == nil {
		return nil, errors.Join(ErrMissingStore, errors.New("blobs"))
	}

	cfg := newConfig(opts...)

	identityOpts := []identity.Option{
		identity.WithLogger(cfg.logger),
		identity.WithResetTokenTTL(cfg.resetTTL),
	}
	tokenOpts := []token.Option{
		token.WithLogger(cfg.logger),
		token.WithTTL(cfg.tokenTTL),
		token.WithSingleTokenPerLogin(cfg.singleToken),
	}
	ledgerOpts := []permission.Option{permission.WithLogger(cfg.logger)}
	registryOpts := []registry.Option{
		registry.WithLogger(cfg.logger),
		registry.WithMaxUploadBytes(cfg.maxUpload),
	}
	if cfg.bcryptCost > 0 {
		identityOpts = append(identityOpts, identity.WithCost(cfg.bcryptCost))
	}
	if cfg.now != nil {
		identityOpts = append(identityOpts, identity.WithClock(cfg.now))
		tokenOpts = append(tokenOpts, token.WithClock(cfg.now))
		ledgerOpts = append(ledgerOpts, permission.WithClock(cfg.now))
		registryOpts = append(registryOpts, registry.WithClock(cfg.now))
	}
	if cfg.reaper != nil {
		registryOpts = append(registryOpts, registry.WithReaper(cfg.reaper))
	}
	if len(cfg.uploadRules) > 0 {
		registryOpts = append(registryOpts, registry.WithUploadRules(cfg.uploadRules...))
	}

	identities, err := identity.NewService(stores.Identities, identityOpts...)
	if err != nil {
		return nil, err
	}
	ledger := permission.NewLedger(stores.Grants, ledgerOpts...)

	return &Core{
		Identities: identities,
		Tokens:     token.NewAuthority(stores.Tokens, identities, tokenOpts...),
		Ledger:     ledger,
		Files:      registry.New(stores.Files, ledger, blobs, identities, registryOpts...),
		cfg:        cfg,
	}, nil
}

// NewMemoryCore builds a Core over in-memory stores and an in-memory blob
// store. Nothing survives the process.
func NewMemoryCore(opts ...Option) (*Core, error) {
	db := memory.New()
	return NewCore(Stores{
		Identities: db.Identities(),
		Tokens:     db.Tokens(),
		Files:      db.Files(),
		Grants:     db.Grants(),
	}, storage.NewMemory(), opts...)
}

// DeleteIdentity removes an identity with its files, grants and tokens.
// Files go first so their blobs are released through the registry; token
// revocation covers token stores without foreign keys.
func (c *Core) DeleteIdentity(ctx context.Context, identityID string) error {
	if _, err := c.Identities.Get(ctx, identityID); err != nil {
		return err
	}

	purged, err := c.Files.PurgeOwner(ctx, identityID)
	if err != nil {
		return err
	}
	if err := c.Tokens.RevokeAllForIdentity(ctx, identityID); err != nil {
		return err
	}
	if err := c.Identities.Delete(ctx, identityID); err != nil {
		return err
	}

	c.cfg.logger.InfoContext(ctx, "identity deleted",
		slog.String("identity_id", identityID),
		slog.Int("files", purged),
	)
	return nil
}

// Handlers returns the HTTP route sets served by this Core.
func (c *Core) Handlers() []httpapi.Handler {
	return []httpapi.Handler{
		httpapi.NewAuthHandler(c.Identities, c.Tokens,
			httpapi.WithRevokeOnPasswordChange(c.cfg.revokeOnPasswordChange),
			httpapi.WithResetNotifier(c.cfg.resetNotifier)),
		httpapi.NewUsersHandler(c.Identities, c.Tokens, c),
		httpapi.NewFilesHandler(c.Files, c.Tokens, c.cfg.maxUpload),
	}
}

var _ httpapi.IdentityRemover = (*Core)(nil)
