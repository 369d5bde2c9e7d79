package middleware

import (
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

const (
	// SessionHeader identifies the storefront session of a request.
	SessionHeader = "X-Session-ID"

	// sessionQueryParam is accepted for clients that cannot set headers,
	// such as the browser EventSource API.
	sessionQueryParam = "session"

	maxSessionIDLen = 128
)

// Session reads the session id from the X-Session-ID header (or the
// "session" query parameter) and stores it in the request context. A
// malformed id is rejected with 400. Requests without a session pass through.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				id = r.URL.Query().Get(sessionQueryParam)
			}
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !validSessionID(id) {
				writeSessionError(w, "INVALID_SESSION", "session id must be 1-128 characters of [A-Za-z0-9._-]")
				return
			}
			next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), id)))
		})
	}
}

// RequireSession rejects requests that reached it without a session id.
// Mount it after Session.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger.SessionIDFromContext(r.Context()) == "" {
				writeSessionError(w, "MISSING_SESSION", "the "+SessionHeader+" header is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validSessionID(id string) bool {
	if len(id) == 0 || len(id) > maxSessionIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func writeSessionError(w http.ResponseWriter, code, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
