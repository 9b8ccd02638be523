package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/token"
)

// ResetNotifier delivers a password reset token to the owner of email.
// It is called only for registered emails; the HTTP response never
// reveals whether it ran.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, resetToken string) error
}

// ResetNotifierFunc adapts a function to ResetNotifier.
type ResetNotifierFunc func(ctx context.Context, email, resetToken string) error

// NotifyPasswordReset calls f.
func (f ResetNotifierFunc) NotifyPasswordReset(ctx context.Context, email, resetToken string) error {
	return f(ctx, email, resetToken)
}

// AuthHandler serves registration, login, password reset and token
// management.
type AuthHandler struct {
	identities   *identity.Service
	tokens       *token.Authority
	notifier     ResetNotifier
	revokeOthers bool
}

// AuthOption configures an AuthHandler.
type AuthOption func(*AuthHandler)

// WithRevokeOnPasswordChange revokes every other token of the identity
// after a successful password change.
func WithRevokeOnPasswordChange(enabled bool) AuthOption {
	return func(h *AuthHandler) {
		h.revokeOthers = enabled
	}
}

// WithResetNotifier sets how password reset tokens reach their owner.
// Without one, reset requests are accepted and the token is discarded.
func WithResetNotifier(n ResetNotifier) AuthOption {
	return func(h *AuthHandler) {
		h.notifier = n
	}
}

// NewAuthHandler creates the authentication routes. Authentication of the
// protected routes uses tokens itself.
func NewAuthHandler(identities *identity.Service, tokens *token.Authority, opts ...AuthOption) *AuthHandler {
	h := &AuthHandler{identities: identities, tokens: tokens}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the public auth endpoints and the token-protected
// account endpoints.
func (h *AuthHandler) Routes(r Router) {
	r.POST("/api/register", h.register)
	r.POST("/api/login", h.login)
	r.POST("/api/forgot-password", h.forgotPassword)
	r.POST("/api/reset-password", h.resetPassword)

	r.Group(func(r Router) {
		r.Use(Authenticate(h.tokens))
		r.POST("/api/logout", h.logout)
		r.POST("/api/logout-all", h.logoutAll)
		r.GET("/api/tokens", h.listTokens)
		r.PUT("/api/password", h.changePassword)
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *identity.Identity `json:"user"`
}

// register never creates admins; use the users API or the seed file.
func (h *AuthHandler) register(c Context) error {
	var req registerRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	ident, err := h.identities.Register(c, req.Name, req.Email, req.Password, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: ident})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  *identity.Identity `json:"user"`
	Token string             `json:"token"`
}

func (h *AuthHandler) login(c Context) error {
	var req loginRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	ident, err := h.identities.VerifyCredentials(c, req.Email, req.Password)
	if err != nil {
		return err
	}

	_, bearer, err := h.tokens.IssueForLogin(c, ident.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{User: ident, Token: bearer})
}

type messageResponse struct {
	Message string `json:"message"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// forgotPassword answers the same way for known and unknown emails.
func (h *AuthHandler) forgotPassword(c Context) error {
	var req forgotPasswordRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return ErrUnprocessable("email is required")
	}

	resetToken, err := h.identities.CreateResetToken(c, req.Email)
	switch {
	case errors.Is(err, identity.ErrNotFound):
	case err != nil:
		return err
	case h.notifier == nil:
		c.Logger().WarnContext(c, "password reset token discarded, no notifier configured")
	default:
		if err := h.notifier.NotifyPasswordReset(c, identity.NormalizeEmail(req.Email), resetToken); err != nil {
			c.Logger().ErrorContext(c, "password reset notification failed", slog.String("error", err.Error()))
		}
	}
	return c.JSON(http.StatusAccepted, messageResponse{
		Message: "If the email is registered, a password reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) resetPassword(c Context) error {
	var req resetPasswordRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}
	if req.Email == "" || req.Token == "" {
		return ErrUnprocessable("email and token are required")
	}

	ident, err := h.identities.ResetPassword(c, req.Email, req.Token, req.Password)
	if err != nil {
		return err
	}

	// Whoever asked for the reset may not hold the old sessions.
	if h.revokeOthers {
		if err := h.tokens.RevokeAllForIdentity(c, ident.ID); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func (h *AuthHandler) logout(c Context) error {
	p := GetPrincipal(c)
	if p == nil {
		return ErrUnauthorized("authentication required")
	}
	if err := h.tokens.Revoke(c, p.TokenID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) logoutAll(c Context) error {
	ident, err := CurrentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.tokens.RevokeAllForIdentity(c, ident.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out from all devices"})
}

type tokenView struct {
	*token.Token
	Current bool `json:"current"`
}

func (h *AuthHandler) listTokens(c Context) error {
	p := GetPrincipal(c)
	if p == nil {
		return ErrUnauthorized("authentication required")
	}

	tokens, err := h.tokens.ListForIdentity(c, p.Identity.ID)
	if err != nil {
		return err
	}

	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, tokenView{Token: t, Current: t.ID == p.TokenID})
	}
	return c.JSON(http.StatusOK, map[string]any{"tokens": views})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

func (h *AuthHandler) changePassword(c Context) error {
	p := GetPrincipal(c)
	if p == nil {
		return ErrUnauthorized("authentication required")
	}

	var req changePasswordRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	if _, err := h.identities.VerifyCredentials(c, p.Identity.Email, req.CurrentPassword); err != nil {
		return err
	}
	if err := h.identities.UpdatePassword(c, p.Identity.ID, req.Password); err != nil {
		return err
	}

	if h.revokeOthers {
		revoked, err := h.revokeOtherTokens(c, p)
		if err != nil {
			return err
		}
		c.Logger().InfoContext(c, "tokens revoked after password change",
			slog.String("identity_id", p.Identity.ID),
			slog.Int("count", revoked),
		)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (h *AuthHandler) revokeOtherTokens(c Context, p *token.Principal) (int, error) {
	tokens, err := h.tokens.ListForIdentity(c, p.Identity.ID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, t := range tokens {
		if t.ID == p.TokenID {
			continue
		}
		if err := h.tokens.Revoke(c, t.ID); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}
