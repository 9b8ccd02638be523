package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/token"
)

// IdentityRemover deletes an identity together with everything it owns.
type IdentityRemover interface {
	DeleteIdentity(ctx context.Context, identityID string) error
}

// UsersHandler serves identity administration.
type UsersHandler struct {
	identities *identity.Service
	tokens     *token.Authority
	remover    IdentityRemover
}

// NewUsersHandler wires the user administration endpoints. remover runs
// the cascade when an identity is deleted.
func NewUsersHandler(identities *identity.Service, tokens *token.Authority, remover IdentityRemover) *UsersHandler {
	return &UsersHandler{identities: identities, tokens: tokens, remover: remover}
}

// Routes mounts /api/users. Every route requires authentication and
// most require an admin.
func (h *UsersHandler) Routes(r Router) {
	r.Route("/api/users", func(r Router) {
		r.Use(Authenticate(h.tokens))

		r.GET("/", h.list, AdminOnly())
		r.POST("/", h.create, AdminOnly())
		r.GET("/{id}", h.show)
		r.PATCH("/{id}", h.update)
		r.DELETE("/{id}", h.delete, AdminOnly())
	})
}

func (h *UsersHandler) list(c Context) error {
	users, err := h.identities.List(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	registerRequest
	IsAdmin bool `json:"is_admin"`
}

func (h *UsersHandler) create(c Context) error {
	var req createUserRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	ident, err := h.identities.Register(c, req.Name, req.Email, req.Password, req.IsAdmin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: ident})
}

// selfOrAdmin returns the current identity if it may act on targetID.
func selfOrAdmin(c Context, targetID string) (*identity.Identity, error) {
	ident, err := CurrentIdentity(c)
	if err != nil {
		return nil, err
	}
	if ident.ID != targetID && !ident.IsAdmin {
		return nil, ErrForbidden("forbidden")
	}
	return ident, nil
}

func (h *UsersHandler) show(c Context) error {
	targetID := c.Param("id")
	if _, err := selfOrAdmin(c, targetID); err != nil {
		return err
	}

	ident, err := h.identities.Get(c, targetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: ident})
}

type updateUserRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	IsAdmin *bool   `json:"is_admin"`
}

func (h *UsersHandler) update(c Context) error {
	targetID := c.Param("id")
	current, err := selfOrAdmin(c, targetID)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}
	if req.IsAdmin != nil && !current.IsAdmin {
		return ErrForbidden("only admins may change admin status")
	}

	ident, err := h.identities.UpdateProfile(c, targetID, identity.Patch{
		Name:    req.Name,
		Email:   req.Email,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: ident})
}

func (h *UsersHandler) delete(c Context) error {
	if err := h.remover.DeleteIdentity(c, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}
