//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"capref/internal/referral/models"
	"capref/internal/referral/store/postgres"
	id "capref/pkg/domain"
	"capref/pkg/platform/sentinel"
	"capref/pkg/requestcontext"
	"capref/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
	now      time.Time
	owner    id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.owner = id.UserID(uuid.New())
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "referrals"))
}

func (s *PostgresStoreSuite) newReferral(owner id.UserID, token string, createdAt time.Time) *models.Referral {
	referral, err := models.NewReferral(owner, "FRIEND42", models.ContactTypeEmail, token+"@example.com", "email", token, createdAt)
	s.Require().NoError(err)
	return referral
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	referral := s.newReferral(s.owner, "tok-round", s.now)
	referral.MarkSent(s.now)
	s.Require().NoError(s.store.Add(s.ctx, referral))

	byID, err := s.store.GetByID(s.ctx, referral.ID())
	s.Require().NoError(err)
	s.Equal(referral.ID(), byID.ID())
	s.Equal(s.owner, byID.ReferrerUserID())
	s.Equal("FRIEND42", byID.ReferrerCode())
	s.Equal(models.StatusSent, byID.Status())
	s.True(byID.CreatedAt().Equal(s.now))

	byToken, err := s.store.GetByToken(s.ctx, "tok-round")
	s.Require().NoError(err)
	s.Equal(referral.ID(), byToken.ID())
}

func (s *PostgresStoreSuite) TestNotFoundAndConflict() {
	s.Run("unknown lookups return ErrNotFound", func() {
		_, err := s.store.GetByID(s.ctx, id.NewReferralID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.GetByToken(s.ctx, "no-such-token")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate token violates the unique index", func() {
		s.Require().NoError(s.store.Add(s.ctx, s.newReferral(s.owner, "tok-dup", s.now)))
		err := s.store.Add(s.ctx, s.newReferral(id.UserID(uuid.New()), "tok-dup", s.now))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("saving an unknown referral returns ErrNotFound", func() {
		referral := s.newReferral(s.owner, "tok-ghost", s.now)
		s.Require().ErrorIs(s.store.Save(s.ctx, referral), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestSavePersistsTransitions() {
	referral := s.newReferral(s.owner, "tok-save", s.now)
	s.Require().NoError(s.store.Add(s.ctx, referral))

	referral.MarkInstalled(s.now.Add(time.Minute))
	s.Require().NoError(s.store.Save(s.ctx, referral))

	stored, err := s.store.GetByID(s.ctx, referral.ID())
	s.Require().NoError(err)
	s.Equal(models.StatusInstalled, stored.Status())
	s.True(stored.LastUpdatedAt().Equal(s.now.Add(time.Minute)))
}

func (s *PostgresStoreSuite) TestListOrderingAndPaging() {
	oldest := s.newReferral(s.owner, "tok-old", s.now.Add(-10*time.Minute))
	middle := s.newReferral(s.owner, "tok-mid", s.now.Add(-5*time.Minute))
	newest := s.newReferral(s.owner, "tok-new", s.now.Add(-time.Minute))
	for _, referral := range []*models.Referral{oldest, middle, newest} {
		s.Require().NoError(s.store.Add(s.ctx, referral))
	}

	s.Run("orders newest first", func() {
		page, err := s.store.ListByReferrer(s.ctx, s.owner, nil, 0, 10)
		s.Require().NoError(err)
		s.Require().Len(page, 3)
		s.Equal(newest.ID(), page[0].ID())
		s.Equal(middle.ID(), page[1].ID())
		s.Equal(oldest.ID(), page[2].ID())
	})

	s.Run("skip and take slice the ordered list", func() {
		page, err := s.store.ListByReferrer(s.ctx, s.owner, nil, 1, 1)
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal(middle.ID(), page[0].ID())
	})

	s.Run("filters by status", func() {
		middle.MarkRegistered(s.now)
		s.Require().NoError(s.store.Save(s.ctx, middle))

		registered := models.StatusRegistered
		page, err := s.store.ListByReferrer(s.ctx, s.owner, &registered, 0, 10)
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal(middle.ID(), page[0].ID())

		count, err := s.store.CountByReferrer(s.ctx, s.owner, &registered)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("non-positive take yields an empty page", func() {
		page, err := s.store.ListByReferrer(s.ctx, s.owner, nil, 0, 0)
		s.Require().NoError(err)
		s.Empty(page)
	})
}

func (s *PostgresStoreSuite) TestWindowQueries() {
	s.Require().NoError(s.store.Add(s.ctx, s.newReferral(s.owner, "tok-1", s.now.Add(-15*time.Minute))))
	s.Require().NoError(s.store.Add(s.ctx, s.newReferral(s.owner, "tok-2", s.now.Add(-10*time.Minute))))
	s.Require().NoError(s.store.Add(s.ctx, s.newReferral(s.owner, "tok-3", s.now.Add(-time.Minute))))

	s.Run("window lower bound is inclusive", func() {
		count, err := s.store.CountCreatedInWindow(s.ctx, s.owner, 10*time.Minute)
		s.Require().NoError(err)
		s.Equal(2, count)
	})

	s.Run("duplicate contact detection is case-insensitive", func() {
		exists, err := s.store.ExistsDuplicate(s.ctx, s.owner, "EMAIL", "TOK-3@EXAMPLE.COM", 10*time.Minute)
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.ExistsDuplicate(s.ctx, s.owner, models.ContactTypeEmail, "tok-1@example.com", 10*time.Minute)
		s.Require().NoError(err)
		s.False(exists, "tok-1 is outside the window")
	})
}

// TestConcurrentTokenClaim verifies that racing inserts of the same token
// admit exactly one winner.
func (s *PostgresStoreSuite) TestConcurrentTokenClaim() {
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			referral := s.newReferral(s.owner, "tok-race", s.now)
			switch err := s.store.Add(s.ctx, referral); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}
