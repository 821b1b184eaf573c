// Package auth provides the bearer-token middleware that resolves caller
// identity for referral endpoints. On success the referrer's user ID and
// referral code are injected into the request context; handlers and the
// service read them via pkg/requestcontext and never touch headers.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "capref/pkg/domain"
	"capref/pkg/requestcontext"
)

// Claims represents the identity claims the middleware expects from the
// token validator.
type Claims struct {
	UserID       string
	ReferralCode string
}

// TokenValidator validates a bearer token and extracts identity claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// writeJSONError writes a JSON error response with the given status code.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token carrying both a
// parseable user ID and a non-blank referral code. Either value being
// unresolvable is an authentication failure, not a validation one: the
// service trusts whatever identity the middleware resolved.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unresolvable user id",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid user identity")
				return
			}
			referralCode := strings.TrimSpace(claims.ReferralCode)
			if referralCode == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing referral code claim")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithReferralCode(ctx, referralCode)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
