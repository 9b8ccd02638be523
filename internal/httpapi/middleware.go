package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/token"
	"github.com/dmitrymomot/filevault/pkg/id"
	"github.com/dmitrymomot/filevault/pkg/logger"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
	defaultStackSize   = 4096
)

type (
	requestIDKey struct{}
	principalKey struct{}
)

// RequestID assigns every request an id, reusing a sane upstream
// X-Request-ID or X-Correlation-ID, and echoes it in the response.
func RequestID() Middleware {
	ext := NewExtractor(FromHeader(RequestIDHeader), FromHeader("X-Correlation-ID"))

	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			reqID, ok := ext.Extract(c)
			if !ok || len(reqID) > maxRequestIDLength || !printable(reqID) {
				reqID = id.NewULID()
			}

			c.Set(requestIDKey{}, reqID)
			c.SetHeader(RequestIDHeader, reqID)
			return next(c)
		}
	}
}

func printable(s string) bool {
	for i := range len(s) {
		if s[i] < '!' || s[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID returns the request id, or "" outside RequestID.
func GetRequestID(c Context) string {
	return ContextValue[string](c, requestIDKey{})
}

// RequestIDExtractor adds request_id to log records.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}

// ActorIDExtractor adds actor_id to log records of authenticated requests.
func ActorIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if p, ok := ctx.Value(principalKey{}).(*token.Principal); ok && p != nil {
			return slog.String("actor_id", p.Identity.ID), true
		}
		return slog.Attr{}, false
	}
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover turns panics into a PanicError for the error handler.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := make([]byte, defaultStackSize)
					stack = stack[:runtime.Stack(stack, false)]
					c.Logger().ErrorContext(c, "panic recovered",
						slog.Any("panic", r),
						slog.String("stack", string(stack)),
					)
					err = &PanicError{Value: r, Stack: stack}
				}
			}()
			return next(c)
		}
	}
}

// AccessLog logs one line per request after it completes.
func AccessLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)

			rw, _ := c.Response().(*ResponseWriter)
			status := 0
			if rw != nil {
				status = rw.Status()
			}
			if err != nil && (rw == nil || !rw.Written()) {
				status = toHTTPError(err).Code
			}
			c.Logger().InfoContext(c, "request",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

// Authenticator resolves a bearer to a principal. *token.Authority
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*token.Principal, error)
}

// Authenticate requires a valid bearer token and stores the principal.
func Authenticate(auth Authenticator) Middleware {
	ext := NewExtractor(FromBearerToken())

	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			bearer, ok := ext.Extract(c)
			if !ok {
				return ErrUnauthorized("missing bearer token")
			}

			p, err := auth.Authenticate(c, bearer)
			if err != nil {
				if token.IsAuthFailure(err) {
					c.Logger().InfoContext(c, "authentication failed", slog.String("reason", err.Error()))
				}
				return err
			}

			c.Set(principalKey{}, p)
			return next(c)
		}
	}
}

// AdminOnly rejects non-admin principals. It must run after Authenticate.
func AdminOnly() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return ErrUnauthorized("authentication required")
			}
			if !p.Identity.IsAdmin {
				return ErrForbidden("admin access required")
			}
			return next(c)
		}
	}
}

// GetPrincipal returns the authenticated principal, or nil.
func GetPrincipal(c Context) *token.Principal {
	return ContextValue[*token.Principal](c, principalKey{})
}

// CurrentIdentity returns the authenticated identity or an error for
// unauthenticated requests.
func CurrentIdentity(c Context) (*identity.Identity, error) {
	p := GetPrincipal(c)
	if p == nil {
		return nil, ErrUnauthorized("authentication required")
	}
	return p.Identity, nil
}

// CurrentActor returns the registry actor of the request.
func CurrentActor(c Context) (registry.Actor, error) {
	ident, err := CurrentIdentity(c)
	if err != nil {
		return registry.Actor{}, err
	}
	return registry.Actor{ID: ident.ID, IsAdmin: ident.IsAdmin}, nil
}
