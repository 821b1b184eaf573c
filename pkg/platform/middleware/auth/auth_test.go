package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capref/pkg/requestcontext"
)

// stubValidator returns canned claims or a canned error.
type stubValidator struct {
	claims *Claims
	err    error
}

func (v stubValidator) ValidateToken(string) (*Claims, error) {
	return v.claims, v.err
}

func protected(validator TokenValidator) (http.Handler, *bool, *string) {
	var reached bool
	var seenCode string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seenCode = requestcontext.ReferralCode(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(validator, logger)(next), &reached, &seenCode
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.NewString()

	t.Run("valid token injects identity", func(t *testing.T) {
		handler, reached, seenCode := protected(stubValidator{
			claims: &Claims{UserID: userID, ReferralCode: "FRIEND42"},
		})

		req := httptest.NewRequest(http.MethodGet, "/v1/referrals", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, *reached)
		assert.Equal(t, "FRIEND42", *seenCode)
	})

	t.Run("missing bearer token is rejected", func(t *testing.T) {
		handler, reached, _ := protected(stubValidator{})

		for _, header := range []string{"", "Bearer ", "Basic dXNlcg==", "some-token"} {
			req := httptest.NewRequest(http.MethodGet, "/v1/referrals", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
			assert.False(t, *reached)
		}
	})

	t.Run("validator failure is rejected", func(t *testing.T) {
		handler, reached, _ := protected(stubValidator{err: errors.New("token expired")})

		req := httptest.NewRequest(http.MethodGet, "/v1/referrals", nil)
		req.Header.Set("Authorization", "Bearer expired")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, *reached)
	})

	t.Run("unresolvable user id is rejected", func(t *testing.T) {
		handler, reached, _ := protected(stubValidator{
			claims: &Claims{UserID: "not-a-uuid", ReferralCode: "FRIEND42"},
		})

		req := httptest.NewRequest(http.MethodGet, "/v1/referrals", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, *reached)
	})

	t.Run("blank referral code claim is rejected", func(t *testing.T) {
		handler, reached, _ := protected(stubValidator{
			claims: &Claims{UserID: userID, ReferralCode: "   "},
		})

		req := httptest.NewRequest(http.MethodGet, "/v1/referrals", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, *reached)
	})
}
