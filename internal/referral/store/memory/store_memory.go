// Package memory provides the volatile reference store. It favors clarity
// over performance and is the default backend for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"capref/internal/referral/models"
	id "capref/pkg/domain"
	"capref/pkg/platform/sentinel"
	"capref/pkg/requestcontext"
)

// Store keeps referrals in an in-process map guarded by a mutex. Every
// stored entry is a value copy, so concurrent readers either see a
// complete snapshot or nothing; an in-flight insert can never surface as
// a partially constructed referral.
type Store struct {
	mu        sync.RWMutex
	referrals map[id.ReferralID]models.Referral
	byToken   map[string]id.ReferralID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		referrals: make(map[id.ReferralID]models.Referral),
		byToken:   make(map[string]id.ReferralID),
	}
}

func (s *Store) Add(ctx context.Context, referral *models.Referral) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byToken[referral.LinkToken()]; taken {
		return sentinel.ErrConflict
	}
	s.referrals[referral.ID()] = *referral
	s.byToken[referral.LinkToken()] = referral.ID()
	return nil
}

func (s *Store) Save(ctx context.Context, referral *models.Referral) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.referrals[referral.ID()]; !exists {
		return sentinel.ErrNotFound
	}
	s.referrals[referral.ID()] = *referral
	return nil
}

func (s *Store) GetByID(_ context.Context, referralID id.ReferralID) (*models.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referral, ok := s.referrals[referralID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &referral, nil
}

func (s *Store) GetByToken(_ context.Context, token string) (*models.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referralID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	referral := s.referrals[referralID]
	return &referral, nil
}

func (s *Store) ListByReferrer(_ context.Context, referrerUserID id.UserID, status *models.Status, skip, take int) ([]*models.Referral, error) {
	s.mu.RLock()
	matches := s.collect(referrerUserID, status)
	s.mu.RUnlock()

	// Creation time descending, referral ID descending as tiebreak, to
	// match the relational backend exactly.
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt().Equal(matches[j].CreatedAt()) {
			return matches[i].CreatedAt().After(matches[j].CreatedAt())
		}
		return strings.Compare(matches[i].ID().String(), matches[j].ID().String()) > 0
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(matches) || take <= 0 {
		return []*models.Referral{}, nil
	}
	end := skip + take
	if end > len(matches) {
		end = len(matches)
	}

	page := make([]*models.Referral, 0, end-skip)
	for i := skip; i < end; i++ {
		referral := matches[i]
		page = append(page, &referral)
	}
	return page, nil
}

func (s *Store) CountByReferrer(_ context.Context, referrerUserID id.UserID, status *models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collect(referrerUserID, status)), nil
}

func (s *Store) CountCreatedInWindow(ctx context.Context, referrerUserID id.UserID, window time.Duration) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, referral := range s.referrals {
		if referral.ReferrerUserID() == referrerUserID && !referral.CreatedAt().Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ExistsDuplicate(ctx context.Context, referrerUserID id.UserID, contactType, normalizedContactValue string, window time.Duration) (bool, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, referral := range s.referrals {
		if referral.ReferrerUserID() == referrerUserID &&
			strings.EqualFold(referral.ContactType(), contactType) &&
			strings.EqualFold(referral.ContactValue(), normalizedContactValue) &&
			!referral.CreatedAt().Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// collect returns value copies of every referral matching the owner and
// optional status filter. Callers must hold at least the read lock.
func (s *Store) collect(referrerUserID id.UserID, status *models.Status) []models.Referral {
	matches := make([]models.Referral, 0)
	for _, referral := range s.referrals {
		if referral.ReferrerUserID() != referrerUserID {
			continue
		}
		if status != nil && referral.Status() != *status {
			continue
		}
		matches = append(matches, referral)
	}
	return matches
}
