package httpapi

// Handler declares routes on a router.
//
//	func (h *FilesHandler) Routes(r httpapi.Router) {
//	    r.GET("/api/files", h.index)
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc handles a request. A returned error is rendered by the
// server's ErrorHandler unless the response was already written.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler renders errors returned from handlers.
type ErrorHandler func(Context, error)
