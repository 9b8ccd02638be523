package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/filevault/pkg/health"
	"github.com/dmitrymomot/filevault/pkg/logger"
)

const (
	LivenessPath  = "/health/live"
	ReadinessPath = "/health/ready"
)

// Server is the HTTP surface: a chi router with error-returning handlers.
// It is immutable after New.
type Server struct {
	router       chi.Router
	errorHandler ErrorHandler
	logger       *slog.Logger
	middlewares  []Middleware
	handlers     []Handler
	checks       health.Checks
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMiddleware appends global middleware, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithHandlers registers route groups. Each Handler mounts its own routes.
func WithHandlers(h ...Handler) Option {
	return func(s *Server) {
		s.handlers = append(s.handlers, h...)
	}
}

// WithErrorHandler replaces the function that renders handler errors.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Server) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// WithHealthChecks registers readiness checks served at ReadinessPath.
func WithHealthChecks(checks health.Checks) Option {
	return func(s *Server) {
		if s.checks == nil {
			s.checks = make(health.Checks, len(checks))
		}
		for name, check := range checks {
			s.checks[name] = check
		}
	}
}

// New builds a Server.
func New(opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		errorHandler: DefaultErrorHandler,
		logger:       logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.NotFound(s.adaptHandler(func(c Context) error {
		return ErrNotFound("route not found")
	}))
	s.router.MethodNotAllowed(s.adaptHandler(func(c Context) error {
		return NewHTTPError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	}))

	for _, mw := range s.middlewares {
		s.router.Use(s.adaptMiddleware(mw))
	}

	s.router.Get(LivenessPath, health.LivenessHandler())
	s.router.Get(ReadinessPath, health.ReadinessHandler(s.checks, health.WithLogger(s.logger)))

	r := &routerAdapter{router: s.router, server: s}
	for _, h := range s.handlers {
		h.Routes(r)
	}
}

func (s *Server) adaptHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c := newContext(w, req, s.logger)
		if err := h(c); err != nil {
			s.handleError(c, err)
		}
	}
}

// adaptMiddleware turns a Middleware into chi middleware. Values stored
// with Context.Set travel to the next handler in the request context.
func (s *Server) adaptMiddleware(mw Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := newContext(w, r, s.logger)
			wrapped := mw(func(c Context) error {
				next.ServeHTTP(c.Response(), c.Request())
				return nil
			})
			if err := wrapped(c); err != nil {
				s.handleError(c, err)
			}
		})
	}
}

func (s *Server) handleError(c Context, err error) {
	if c.Written() {
		c.Logger().WarnContext(c, "error after response started", slog.String("error", err.Error()))
		return
	}
	s.errorHandler(c, err)
}
