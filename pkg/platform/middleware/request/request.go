// Package request provides request ID middleware and accessors.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"estateproof/pkg/requestcontext"
)

// HeaderRequestID is the response header carrying the request ID.
const HeaderRequestID = "X-Request-Id"

// RequestID assigns each request a unique ID, honoring an inbound
// X-Request-Id header when present. The ID is stored in the context and
// echoed on the response so clients can correlate poll cycles with logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
