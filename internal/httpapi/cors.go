package httpapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

const defaultCORSMaxAge = 12 * time.Hour

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader}
)

// CORS lets browsers on the listed origins call the API. "*" allows any
// origin. Bearer tokens travel in headers, so credentials mode is never
// advertised. With no origins the middleware is a no-op.
func CORS(origins ...string) Middleware {
	wildcard := slices.Contains(origins, "*")
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")
	maxAge := strconv.Itoa(int(defaultCORSMaxAge.Seconds()))

	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			origin := c.Header("Origin")
			if origin == "" || len(origins) == 0 {
				return next(c)
			}
			if !wildcard && !slices.Contains(origins, origin) {
				return next(c)
			}

			h := c.Response().Header()
			h.Add("Vary", "Origin")
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")

			if c.Request().Method == http.MethodOptions && c.Header("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
