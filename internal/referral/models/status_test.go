package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "capref/pkg/domain-errors"
)

func TestParseStatus(t *testing.T) {
	t.Run("accepts canonical values case-insensitively", func(t *testing.T) {
		for _, input := range []string{"Sent", "sent", "SENT", "sEnT"} {
			status, err := ParseStatus(input)
			require.NoError(t, err, "input %q", input)
			assert.Equal(t, StatusSent, status)
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseStatus("shipped")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := ParseStatus("")
		require.Error(t, err)
	})
}

func TestStatusPrecedes(t *testing.T) {
	ordered := []Status{StatusCreated, StatusSent, StatusOpened, StatusInstalled, StatusRegistered}

	t.Run("strict order over promotable statuses", func(t *testing.T) {
		for i, earlier := range ordered {
			for j, later := range ordered {
				assert.Equal(t, i < j, earlier.Precedes(later),
					"%s.Precedes(%s)", earlier, later)
			}
		}
	})

	t.Run("cancelled participates in no ordering", func(t *testing.T) {
		for _, status := range ordered {
			assert.False(t, StatusCancelled.Precedes(status))
			assert.False(t, status.Precedes(StatusCancelled))
		}
		assert.False(t, StatusCancelled.Precedes(StatusCancelled))
	})

	t.Run("unknown statuses never precede anything", func(t *testing.T) {
		assert.False(t, Status("bogus").Precedes(StatusRegistered))
		assert.False(t, StatusCreated.Precedes(Status("bogus")))
	})
}

func TestStatusAtLeast(t *testing.T) {
	assert.True(t, StatusRegistered.AtLeast(StatusOpened))
	assert.True(t, StatusOpened.AtLeast(StatusOpened))
	assert.False(t, StatusCreated.AtLeast(StatusSent))
	assert.False(t, StatusCancelled.AtLeast(StatusCreated))
	assert.False(t, StatusRegistered.AtLeast(StatusCancelled))
}

func TestParseEventType(t *testing.T) {
	t.Run("accepts known events case-insensitively", func(t *testing.T) {
		event, err := ParseEventType("registered")
		require.NoError(t, err)
		assert.Equal(t, EventRegistered, event)
	})

	t.Run("unknown events fail with invalid_event", func(t *testing.T) {
		_, err := ParseEventType("uninstalled")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEvent))
	})
}
