// Package jwtauth issues and validates the HS256 access tokens the
// referral endpoints accept. Tokens carry the referrer's user ID and their
// own referral code; both are required by the create flow.
package jwtauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	authmw "capref/pkg/platform/middleware/auth"
)

// Claims represents the JWT claims for referral access tokens.
type Claims struct {
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken mints a signed access token for the given identity.
// Used by tests and local tooling; production tokens come from the
// identity platform sharing the signing key.
func (s *Service) GenerateToken(userID, referralCode string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:       userID,
		ReferralCode: referralCode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning the identity claims
// the auth middleware consumes.
func (s *Service) ValidateToken(tokenString string) (*authmw.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &authmw.Claims{UserID: claims.UserID, ReferralCode: claims.ReferralCode}, nil
}
