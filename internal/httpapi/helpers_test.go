package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault"
	"github.com/dmitrymomot/filevault/internal/httpapi"
)

type testAPI struct {
	core   *filevault.Core
	server *httpapi.Server
}

func newTestAPI(t *testing.T, opts ...filevault.Option) *testAPI {
	t.Helper()

	opts = append([]filevault.Option{filevault.WithBcryptCost(bcrypt.MinCost)}, opts...)
	core, err := filevault.NewMemoryCore(opts...)
	require.NoError(t, err)

	return &testAPI{
		core: core,
		server: httpapi.New(
			httpapi.WithMiddleware(httpapi.RequestID(), httpapi.Recover(), httpapi.AccessLog()),
			httpapi.WithHandlers(core.Handlers()...),
		),
	}
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), v), r.Body.String())
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func (r response) apiError(t *testing.T) errorResponse {
	t.Helper()
	var e errorResponse
	r.decode(t, &e)
	return e
}

func (a *testAPI) do(t *testing.T, method, path, bearer string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, bearer)
}

func newRawRequest(method, path, contentType, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func (a *testAPI) send(req *http.Request, bearer string) response {
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return response{rec}
}

func (a *testAPI) upload(t *testing.T, bearer, filename, content string) response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(req, bearer)
}

type user struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// signup registers a user and logs in, returning the user and its bearer.
func (a *testAPI) signup(t *testing.T, name, email string) (user, string) {
	t.Helper()

	res := a.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": "password-123",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	return a.login(t, email, "password-123")
}

func (a *testAPI) login(t *testing.T, email, password string) (user, string) {
	t.Helper()

	res := a.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body struct {
		User  user   `json:"user"`
		Token string `json:"token"`
	}
	res.decode(t, &body)
	require.NotEmpty(t, body.Token)
	return body.User, body.Token
}

// admin creates an admin directly through the core and logs in.
func (a *testAPI) admin(t *testing.T) (user, string) {
	t.Helper()

	_, err := a.core.Identities.Register(context.Background(), "Admin", "admin@example.com", "password-123", true)
	require.NoError(t, err)
	return a.login(t, "admin@example.com", "password-123")
}
