// Package domain defines typed identifiers shared across the referral
// service. Typed IDs prevent cross-type assignment at compile time, so a
// referrer's user ID can never be passed where a referral ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "capref/pkg/domain-errors"
)

// UserID identifies the referrer (the existing user sending invitations).
type UserID uuid.UUID

// ReferralID identifies a single tracked referral.
type ReferralID uuid.UUID

// NewReferralID returns a fresh random referral identifier.
func NewReferralID() ReferralID {
	return ReferralID(uuid.New())
}

// ParseUserID constructs a UserID from external input.
// Returns CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseReferralID constructs a ReferralID from external input.
// Returns CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseReferralID(s string) (ReferralID, error) {
	u, err := parseUUID(s, "referral id")
	return ReferralID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id ReferralID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ReferralID) String() string { return uuid.UUID(id).String() }
