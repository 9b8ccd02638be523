package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxJSONBodyBytes = 1 << 20

// Context is the per-request API handed to handlers and middleware.
type Context interface {
	context.Context

	Request() *http.Request
	Response() http.ResponseWriter
	Context() context.Context

	Param(name string) string
	Query(name string) string
	Header(name string) string
	SetHeader(name, value string)

	// BindJSON decodes the request body into v. Unknown fields are rejected.
	BindJSON(v any) error

	JSON(code int, v any) error
	NoContent(code int) error
	// Stream copies r to the response with the given content type.
	Stream(code int, contentType string, r io.Reader) error

	// Set stores a request-scoped value in the request context, where log
	// extractors can see it.
	Set(key, value any)
	Get(key any) any

	Logger() *slog.Logger
	Written() bool
}

type requestContext struct {
	request  *http.Request
	response *ResponseWriter
	logger   *slog.Logger
}

func newContext(w http.ResponseWriter, r *http.Request, log *slog.Logger) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &requestContext{request: r, response: rw, logger: log}
}

func (c *requestContext) Request() *http.Request { return c.request }
func (c *requestContext) Response() http.ResponseWriter { return c.response }
func (c *requestContext) Context() context.Context { return c.request.Context() }

func (c *requestContext) Deadline() (deadline time.Time, ok bool) { return c.Context().Deadline() }
func (c *requestContext) Done() <-chan struct{} { return c.Context().Done() }
func (c *requestContext) Err() error { return c.Context().Err() }
func (c *requestContext) Value(key any) any { return c.Context().Value(key) }

func (c *requestContext) Param(name string) string {
	return chi.URLParam(c.request, name)
}

func (c *requestContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *requestContext) Header(name string) string {
	return c.request.Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) BindJSON(v any) error {
	if ct := c.Header("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return ErrUnsupportedMedia("request body must be application/json")
	}

	dec := json.NewDecoder(io.LimitReader(c.request.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest("request body is empty")
		}
		return ErrBadRequest(fmt.Sprintf("malformed JSON body: %v", err), WithError(err))
	}
	return nil
}

func (c *requestContext) JSON(code int, v any) error {
	c.SetHeader("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) NoContent(code int) error {
	c.response.WriteHeader(code)
	return nil
}

func (c *requestContext) Stream(code int, contentType string, r io.Reader) error {
	c.SetHeader("Content-Type", contentType)
	c.response.WriteHeader(code)
	_, err := io.Copy(c.response, r)
	return err
}

func (c *requestContext) Set(key, value any) {
	c.request = c.request.WithContext(context.WithValue(c.request.Context(), key, value))
}

func (c *requestContext) Get(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Logger() *slog.Logger { return c.logger }

func (c *requestContext) Written() bool { return c.response.Written() }

// ContextValue returns the value stored under key as T, or T's zero value.
func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}
