package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filevault"
	"github.com/dmitrymomot/filevault/internal/httpapi"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func (m *mailbox) NotifyPasswordReset(_ context.Context, email, resetToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]string)
	}
	m.tokens[email] = resetToken
	return m.err
}

func (m *mailbox) token(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[email]
	return tok, ok
}

var _ httpapi.ResetNotifier = (*mailbox)(nil)

func TestForgotPassword(t *testing.T) {
	t.Parallel()

	box := &mailbox{}
	api := newTestAPI(t, filevault.WithResetNotifier(box))
	api.signup(t, "Alice", "alice@example.com")

	known := api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "Alice@Example.com"})
	require.Equal(t, http.StatusAccepted, known.Code, known.Body.String())
	tok, ok := box.token("alice@example.com")
	require.True(t, ok)
	assert.Len(t, tok, 64)
	assert.NotContains(t, known.Body.String(), tok)

	unknown := api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusAccepted, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	_, ok = box.token("nobody@example.com")
	assert.False(t, ok)

	res := api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestForgotPasswordHidesNotifierFailure(t *testing.T) {
	t.Parallel()

	box := &mailbox{err: errors.New("smtp down")}
	api := newTestAPI(t, filevault.WithResetNotifier(box))
	api.signup(t, "Alice", "alice@example.com")

	res := api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusAccepted, res.Code)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	t.Run("resets once", func(t *testing.T) {
		t.Parallel()

		box := &mailbox{}
		api := newTestAPI(t, filevault.WithResetNotifier(box))
		_, bearer := api.signup(t, "Alice", "alice@example.com")

		api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "alice@example.com"})
		tok, ok := box.token("alice@example.com")
		require.True(t, ok)

		body := map[string]string{"email": "alice@example.com", "token": tok, "password": "new-password-1"}
		res := api.do(t, http.MethodPost, "/api/reset-password", "", body)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		api.login(t, "alice@example.com", "new-password-1")
		res = api.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "alice@example.com", "password": "password-123"})
		assert.Equal(t, http.StatusUnauthorized, res.Code)

		// Existing sessions survive unless revocation is configured.
		assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/tokens", bearer, nil).Code)

		res = api.do(t, http.MethodPost, "/api/reset-password", "", body)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, httpapi.CodeInvalidResetToken, res.apiError(t).Error.Code)
	})

	t.Run("revokes sessions when configured", func(t *testing.T) {
		t.Parallel()

		box := &mailbox{}
		api := newTestAPI(t, filevault.WithResetNotifier(box), filevault.WithRevokeOnPasswordChange(true))
		_, bearer := api.signup(t, "Alice", "alice@example.com")

		api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "alice@example.com"})
		tok, _ := box.token("alice@example.com")

		res := api.do(t, http.MethodPost, "/api/reset-password", "", map[string]string{
			"email": "alice@example.com", "token": tok, "password": "new-password-1",
		})
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/tokens", bearer, nil).Code)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()

		box := &mailbox{}
		api := newTestAPI(t, filevault.WithResetNotifier(box))
		api.signup(t, "Alice", "alice@example.com")
		api.do(t, http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "alice@example.com"})
		tok, _ := box.token("alice@example.com")

		tests := []struct {
			name string
			body map[string]string
			want int
		}{
			{"missing token", map[string]string{"email": "alice@example.com", "password": "new-password-1"}, http.StatusUnprocessableEntity},
			{"unknown email", map[string]string{"email": "nobody@example.com", "token": tok, "password": "new-password-1"}, http.StatusBadRequest},
			{"wrong token", map[string]string{"email": "alice@example.com", "token": "not-the-token", "password": "new-password-1"}, http.StatusBadRequest},
			{"short password", map[string]string{"email": "alice@example.com", "token": tok, "password": "short"}, http.StatusUnprocessableEntity},
		}
		for _, tt := range tests {
			res := api.do(t, http.MethodPost, "/api/reset-password", "", tt.body)
			assert.Equal(t, tt.want, res.Code, tt.name)
		}
	})
}
