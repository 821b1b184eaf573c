package testutil

import (
	"net/http"
	"time"

	id "capref/pkg/domain"
	"capref/pkg/requestcontext"
)

// WithIdentity adds a user ID and referral code to the request context,
// simulating what the auth middleware does for authenticated requests.
// An unparseable user ID is silently ignored.
func WithIdentity(req *http.Request, userID, referralCode string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if referralCode != "" {
		ctx = requestcontext.WithReferralCode(ctx, referralCode)
	}
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, simulating the
// requesttime middleware with a fixed instant.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
