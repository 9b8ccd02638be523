package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/repository"
	"github.com/dmitrymomot/filevault/internal/token"
)

// Error codes sent in the "code" field of error bodies.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidToken       = "invalid_token"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidResetToken  = "invalid_reset_token"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeConflict           = "conflict"
	CodeTooLarge           = "payload_too_large"
	CodeUnsupportedMedia   = "unsupported_media_type"
	CodeInvalidInput       = "invalid_input"
	CodeInternal           = "internal_error"
	CodeUnavailable        = "service_unavailable"
)

// HTTPError is an error with everything needed to render it.
type HTTPError struct {
	// Err is the cause; it is logged, never sent.
	Err error

	Message   string
	ErrorCode string
	RequestID string
	Code      int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// WithErrorCode overrides the machine-readable code sent to the client.
func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

// WithError attaches the underlying cause. It is logged, never rendered.
func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// NewHTTPError creates an HTTPError with the given status and message.
func NewHTTPError(code int, errorCode, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, ErrorCode: errorCode, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, CodeBadRequest, message, opts...)
}

// ErrUnauthorized returns a 401 Unauthorized error.
func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, message, opts...)
}

// ErrForbidden returns a 403 Forbidden error.
func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusForbidden, CodeForbidden, message, opts...)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, message, opts...)
}

// ErrUnsupportedMedia returns a 415 Unsupported Media Type error.
func ErrUnsupportedMedia(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnsupportedMediaType, CodeUnsupportedMedia, message, opts...)
}

// ErrUnprocessable returns a 422 Unprocessable Entity error.
func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, CodeInvalidInput, message, opts...)
}

// ErrInternal returns a 500 Internal Server Error error.
func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, CodeInternal, message, opts...)
}

// AsHTTPError extracts an HTTPError anywhere in err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// toHTTPError maps domain errors to their HTTP rendering. Every token
// verification failure renders the same body.
func toHTTPError(err error) *HTTPError {
	if he, ok := AsHTTPError(err); ok {
		return he
	}

	var maxBytes *http.MaxBytesError
	switch {
	case token.IsAuthFailure(err):
		return NewHTTPError(http.StatusUnauthorized, CodeInvalidToken, "invalid token", WithError(err))
	case errors.Is(err, identity.ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials", WithError(err))
	case errors.Is(err, identity.ErrInvalidResetToken):
		return NewHTTPError(http.StatusBadRequest, CodeInvalidResetToken, "invalid token or email", WithError(err))
	case errors.Is(err, identity.ErrDuplicateEmail):
		return NewHTTPError(http.StatusConflict, CodeConflict, "email is already registered", WithError(err))
	case errors.Is(err, identity.ErrInvalidInput):
		return ErrUnprocessable(detail(err, identity.ErrInvalidInput), WithError(err))
	case errors.Is(err, registry.ErrInvalidInput):
		return ErrUnprocessable(detail(err, registry.ErrInvalidInput), WithError(err))
	case errors.Is(err, permission.ErrUnknownCapability):
		return ErrUnprocessable(detail(err, permission.ErrUnknownCapability), WithError(err))
	case errors.Is(err, registry.ErrInvalidGrantee):
		return ErrUnprocessable("a file cannot be shared with its owner", WithError(err))
	case errors.Is(err, registry.ErrGranteeNotFound):
		return ErrNotFound("user not found", WithError(err))
	case errors.Is(err, identity.ErrNotFound):
		return ErrNotFound("user not found", WithError(err))
	case errors.Is(err, registry.ErrNotFound):
		return ErrNotFound("file not found", WithError(err))
	case errors.Is(err, registry.ErrForbidden):
		return ErrForbidden("forbidden", WithError(err))
	case errors.As(err, &maxBytes):
		return NewHTTPError(http.StatusRequestEntityTooLarge, CodeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit), WithError(err))
	case errors.Is(err, repository.ErrBackendUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, CodeUnavailable, "service temporarily unavailable", WithError(err))
	default:
		return ErrInternal("internal server error", WithError(err))
	}
}

// detail strips the sentinel prefix from a wrapped validation message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return "invalid input"
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// DefaultErrorHandler renders errors as JSON and logs server-side failures.
func DefaultErrorHandler(c Context, err error) {
	he := toHTTPError(err)
	if he.RequestID == "" {
		he.RequestID = GetRequestID(c)
	}

	switch {
	case he.Code >= http.StatusInternalServerError:
		c.Logger().ErrorContext(c, "request failed",
			slog.Int("status", he.Code),
			slog.String("error", errorString(err)),
		)
	case he.Code == http.StatusUnauthorized || he.Code == http.StatusForbidden:
		c.Logger().DebugContext(c, "request rejected",
			slog.Int("status", he.Code),
			slog.String("error", errorString(err)),
		)
	}

	_ = c.JSON(he.Code, errorBody{Error: errorPayload{
		Code:      he.ErrorCode,
		Message:   he.Message,
		RequestID: he.RequestID,
	}})
}

func errorString(err error) string {
	if he, ok := AsHTTPError(err); ok && he.Err != nil {
		return he.Err.Error()
	}
	return err.Error()
}
