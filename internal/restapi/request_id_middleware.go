package restapi

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"

	// Browsers cannot set headers on EventSource or WebSocket handshakes,
	// so stream clients may pass their trace ID as a query parameter.
	requestIDQueryParam = "request_id"
	maxRequestIDLength  = 128
)

var validRequestIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-._:]+$`)

// RequestIDMiddleware tags every request with a trace ID, generating a UUID
// when the client did not supply a usable one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return NewRequestIDMiddleware(uuid.NewString)(next)
}

// NewRequestIDMiddleware is RequestIDMiddleware with a custom ID generator.
func NewRequestIDMiddleware(generate func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := clientRequestID(r)
			if reqID == "" {
				reqID = generate()
			}

			w.Header().Set(RequestIDHeader, reqID)
			ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientRequestID returns the header ID, then the query ID, skipping any that
// fail validation.
func clientRequestID(r *http.Request) string {
	for _, id := range []string{r.Header.Get(RequestIDHeader), r.URL.Query().Get(requestIDQueryParam)} {
		if validRequestID(id) {
			return id
		}
	}
	return ""
}

func validRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDLength && validRequestIDRegex.MatchString(id)
}

// GetRequestID returns the trace ID stored by RequestIDMiddleware, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
