// Package memory implements every store contract over maps guarded by one
// RWMutex. Deleting an identity cascades to its tokens, owned files and
// grants the way the Postgres foreign keys do. Records are copied on the
// way in and out so callers never share memory with the store.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/token"
)

type grantKey struct {
	fileID    string
	granteeID string
}

// Database holds all records.
type Database struct {
	mu         sync.RWMutex
	identities map[string]*identity.Identity
	emails     map[string]string
	resets     map[string]*identity.ResetToken
	tokens     map[string]*token.Token
	files      map[string]*registry.File
	grants     map[grantKey]*permission.Grant
}

// New returns an empty Database.
func New() *Database {
	return &Database{
		identities: make(map[string]*identity.Identity),
		emails:     make(map[string]string),
		resets:     make(map[string]*identity.ResetToken),
		tokens:     make(map[string]*token.Token),
		files:      make(map[string]*registry.File),
		grants:     make(map[grantKey]*permission.Grant),
	}
}

// Identities returns the identity.Store view.
func (db *Database) Identities() *IdentityStore { return &IdentityStore{db: db} }

// Tokens returns the token.Store view.
func (db *Database) Tokens() *TokenStore { return &TokenStore{db: db} }

// Files returns the registry.Store view.
func (db *Database) Files() *FileStore { return &FileStore{db: db} }

// Grants returns the permission.Store view.
func (db *Database) Grants() *GrantStore { return &GrantStore{db: db} }

// Healthcheck always succeeds once ctx is live.
func (db *Database) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// deleteFileLocked removes a file and its grants. Caller holds mu.
func (db *Database) deleteFileLocked(fileID string) {
	delete(db.files, fileID)
	for k := range db.grants {
		if k.fileID == fileID {
			delete(db.grants, k)
		}
	}
}
