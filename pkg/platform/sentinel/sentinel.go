package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Store implementations return
// these (optionally wrapped) so the referral service can translate them
// into coded domain errors without knowing which backend produced them.
//
// These represent factual states about stored referrals:
// - ErrNotFound: referral does not exist in the store
// - ErrConflict: unique constraint violated (duplicate link token)
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
