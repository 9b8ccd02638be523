package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault/pkg/id"
)

// Service registers identities and checks their credentials.
type Service struct {
	store Store
	opts  *options
	// dummyHash is compared against when an email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// NewService wires a Service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("filevault-dummy-password"), o.cost)
	if err != nil {
		return nil, fmt.Errorf("identity: prepare dummy hash: %w", err)
	}

	return &Service{
		store:     store,
		opts:      o,
		dummyHash: dummy,
	}, nil
}

// Register creates an identity. The email must not be registered yet.
func (s *Service) Register(ctx context.Context, name, email, password string, isAdmin bool) (*Identity, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	email, err = validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.cost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	now := s.opts.now().UTC()
	ident := &Identity{
		ID:           id.NewULID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, ident); err != nil {
		return nil, err
	}

	s.opts.log.InfoContext(ctx, "identity registered",
		slog.String("identity_id", ident.ID),
		slog.Bool("is_admin", ident.IsAdmin),
	)
	return ident, nil
}

// VerifyCredentials returns the identity owning email if password matches.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*Identity, error) {
	ident, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	switch {
	case errors.Is(err, ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.opts.log.DebugContext(ctx, "credential check failed", slog.String("reason", "unknown email"))
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)); err != nil {
		s.opts.log.DebugContext(ctx, "credential check failed",
			slog.String("reason", "password mismatch"),
			slog.String("identity_id", ident.ID),
		)
		return nil, ErrInvalidCredentials
	}
	return ident, nil
}

// UpdatePassword replaces the stored hash and drops any pending reset
// token. Issued bearer tokens stay valid.
func (s *Service) UpdatePassword(ctx context.Context, identityID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	ident, err := s.store.GetByID(ctx, identityID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.cost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	ident.PasswordHash = hash
	ident.UpdatedAt = s.opts.now().UTC()

	if err := s.store.Update(ctx, ident); err != nil {
		return err
	}
	if err := s.store.DeleteResetToken(ctx, identityID); err != nil {
		return err
	}
	s.opts.log.InfoContext(ctx, "password updated", slog.String("identity_id", identityID))
	return nil
}

// Get returns the identity with the given id.
func (s *Service) Get(ctx context.Context, identityID string) (*Identity, error) {
	return s.store.GetByID(ctx, identityID)
}

// List returns every identity ordered by creation.
func (s *Service) List(ctx context.Context) ([]*Identity, error) {
	return s.store.List(ctx)
}

// UpdateProfile applies p to the identity.
func (s *Service) UpdateProfile(ctx context.Context, identityID string, p Patch) (*Identity, error) {
	ident, err := s.store.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return ident, nil
	}

	if p.Name != nil {
		name, err := validateName(*p.Name)
		if err != nil {
			return nil, err
		}
		ident.Name = name
	}
	emailChanged := false
	if p.Email != nil {
		email, err := validateEmail(*p.Email)
		if err != nil {
			return nil, err
		}
		emailChanged = email != ident.Email
		ident.Email = email
	}
	if p.IsAdmin != nil {
		ident.IsAdmin = *p.IsAdmin
	}
	ident.UpdatedAt = s.opts.now().UTC()

	if err := s.store.Update(ctx, ident); err != nil {
		return nil, err
	}
	// A reset token is bound to the address it was mailed to.
	if emailChanged {
		if err := s.store.DeleteResetToken(ctx, ident.ID); err != nil {
			return nil, err
		}
	}
	return ident, nil
}

// Delete removes the identity. Stores cascade to the identity's tokens,
// owned file records and grants; blob cleanup is the caller's concern.
func (s *Service) Delete(ctx context.Context, identityID string) error {
	if err := s.store.Delete(ctx, identityID); err != nil {
		return err
	}
	s.opts.log.InfoContext(ctx, "identity deleted", slog.String("identity_id", identityID))
	return nil
}
