// Package store defines the persistence contract for referrals. Backends
// (memory, postgres, redis) must agree exactly on ordering, pagination
// boundaries, and window inclusivity so they are interchangeable.
package store

import (
	"context"
	"time"

	"capref/internal/referral/models"
	id "capref/pkg/domain"
)

// Store is the referral persistence contract.
//
// Implementations return sentinel.ErrNotFound for missing referrals and
// sentinel.ErrConflict when a unique constraint (link token) is violated.
// Listing is ordered by creation time descending with referral ID
// descending as the tiebreak; skip/take apply after ordering. Trailing
// windows use an inclusive lower bound: createdAt >= now - window, where
// now is the request-scoped clock (pkg/requestcontext).
type Store interface {
	// Add inserts a new referral. A duplicate link token fails with
	// sentinel.ErrConflict and must never overwrite the existing row.
	Add(ctx context.Context, referral *models.Referral) error

	// GetByID looks up a referral by its identifier.
	GetByID(ctx context.Context, referralID id.ReferralID) (*models.Referral, error)

	// GetByToken looks up a referral by its unique link token.
	GetByToken(ctx context.Context, token string) (*models.Referral, error)

	// ListByReferrer returns one page of the referrer's referrals,
	// optionally filtered by status.
	ListByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status, skip, take int) ([]*models.Referral, error)

	// CountByReferrer counts the referrer's referrals, optionally
	// filtered by status.
	CountByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status) (int, error)

	// CountCreatedInWindow counts referrals the referrer created within
	// the trailing window.
	CountCreatedInWindow(ctx context.Context, referrerUserID id.UserID, window time.Duration) (int, error)

	// ExistsDuplicate reports whether the referrer already targeted the
	// same normalized contact within the trailing window. The capability
	// is part of the contract even though the service does not currently
	// call it during Create.
	ExistsDuplicate(ctx context.Context, referrerUserID id.UserID, contactType, normalizedContactValue string, window time.Duration) (bool, error)

	// Save persists the current state of an existing referral.
	Save(ctx context.Context, referral *models.Referral) error
}
