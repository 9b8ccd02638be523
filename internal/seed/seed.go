// Package seed creates identities listed in a YAML file at startup.
// Applying the same file twice is harmless: identities whose email is
// already registered are skipped.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/filevault/internal/identity"
)

// ErrInvalidFile is returned when the seed file cannot be decoded.
var ErrInvalidFile = errors.New("seed: invalid seed file")

// User is one identity to create.
type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	IsAdmin  bool   `yaml:"is_admin"`
}

// File is the seed document.
type File struct {
	Users []User `yaml:"users"`
}

// Registrar is satisfied by *identity.Service.
type Registrar interface {
	Register(ctx context.Context, name, email, password string, isAdmin bool) (*identity.Identity, error)
}

// Result counts what Apply did.
type Result struct {
	Created int
	Skipped int
}

// Decode parses a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, errors.Join(ErrInvalidFile, err)
	}
	return &f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Apply registers every user in f. It stops at the first error other than
// a duplicate email.
func Apply(ctx context.Context, reg Registrar, f *File, log *slog.Logger) (Result, error) {
	var res Result
	for i, u := range f.Users {
		_, err := reg.Register(ctx, u.Name, u.Email, u.Password, u.IsAdmin)
		switch {
		case errors.Is(err, identity.ErrDuplicateEmail):
			res.Skipped++
			continue
		case err != nil:
			return res, fmt.Errorf("seed: user #%d: %w", i+1, err)
		}
		res.Created++
		if log != nil {
			log.InfoContext(ctx, "seeded identity",
				slog.String("email", identity.NormalizeEmail(u.Email)),
				slog.Bool("is_admin", u.IsAdmin),
			)
		}
	}
	return res, nil
}

// ApplyFile loads path and applies it. An empty path does nothing.
func ApplyFile(ctx context.Context, reg Registrar, path string, log *slog.Logger) (Result, error) {
	if path == "" {
		return Result{}, nil
	}
	f, err := Load(path)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, reg, f, log)
}
