// Package link generates the opaque token and shareable URL for a
// referral.
package link

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	id "capref/pkg/domain"
)

// tokenLength is the number of lower-case hex characters kept from the
// hash. 48 bits of entropy plus millisecond timestamps makes collisions
// practically impossible; the store's unique constraint on link_token is
// the backstop either way.
const tokenLength = 12

// Generator produces a unique link token and shareable URL for a referral.
type Generator interface {
	GenerateLink(referrerUserID id.UserID, referralCode string) (token string, shareURL string, err error)
}

// SHA256Generator derives tokens from a hash of the referrer identity and
// a fine-grained timestamp.
type SHA256Generator struct {
	baseURL *url.URL
	clock   func() time.Time
}

// Option configures a SHA256Generator.
type Option func(*SHA256Generator)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(g *SHA256Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewSHA256Generator constructs a generator rooted at baseURL.
func NewSHA256Generator(baseURL string, opts ...Option) (*SHA256Generator, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse link base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("link base URL %q must be absolute", baseURL)
	}
	g := &SHA256Generator{baseURL: parsed, clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateLink returns a token plus the URL a referrer shares. The URL is
// the configured base joined with /r/{token}.
func (g *SHA256Generator) GenerateLink(referrerUserID id.UserID, referralCode string) (string, string, error) {
	input := fmt.Sprintf("%s:%s:%s",
		referrerUserID.String(),
		referralCode,
		g.clock().UTC().Format("20060102150405.000"),
	)
	sum := sha256.Sum256([]byte(input))
	token := hex.EncodeToString(sum[:])[:tokenLength]

	shareURL := g.baseURL.JoinPath("r", token).String()
	return token, shareURL, nil
}
