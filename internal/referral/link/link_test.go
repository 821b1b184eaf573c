package link

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "capref/pkg/domain"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{12}$`)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewSHA256Generator(t *testing.T) {
	t.Run("rejects relative base URLs", func(t *testing.T) {
		_, err := NewSHA256Generator("/just/a/path")
		require.Error(t, err)

		_, err = NewSHA256Generator("example.com")
		require.Error(t, err)
	})

	t.Run("trims a trailing slash", func(t *testing.T) {
		g, err := NewSHA256Generator("https://caps.example.com/")
		require.NoError(t, err)

		_, shareURL, err := g.GenerateLink(id.UserID(uuid.New()), "FRIEND42")
		require.NoError(t, err)
		assert.NotContains(t, shareURL, "//r/")
	})
}

func TestGenerateLink(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	userID := id.UserID(uuid.New())

	g, err := NewSHA256Generator("https://caps.example.com", WithClock(fixedClock(now)))
	require.NoError(t, err)

	t.Run("token is short lowercase hex", func(t *testing.T) {
		token, _, err := g.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		assert.Regexp(t, hexToken, token)
	})

	t.Run("share URL is base joined with /r/{token}", func(t *testing.T) {
		token, shareURL, err := g.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		assert.Equal(t, "https://caps.example.com/r/"+token, shareURL)
	})

	t.Run("deterministic for identical inputs and instant", func(t *testing.T) {
		first, _, err := g.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		second, _, err := g.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("distinct referrers get distinct tokens", func(t *testing.T) {
		first, _, err := g.GenerateLink(id.UserID(uuid.New()), "FRIEND42")
		require.NoError(t, err)
		second, _, err := g.GenerateLink(id.UserID(uuid.New()), "FRIEND42")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("clock advance changes the token", func(t *testing.T) {
		later, err := NewSHA256Generator("https://caps.example.com",
			WithClock(fixedClock(now.Add(time.Millisecond))))
		require.NoError(t, err)

		first, _, err := g.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		second, _, err := later.GenerateLink(userID, "FRIEND42")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
