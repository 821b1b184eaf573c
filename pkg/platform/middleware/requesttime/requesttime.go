// Package requesttime stamps each request with a single "now" so every
// operation inside one request observes the same instant. Domain
// timestamps, throttle windows, and audit records stay consistent even
// when a request straddles a clock tick.
package requesttime

import (
	"net/http"
	"time"

	"capref/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context for consistent time references throughout.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
