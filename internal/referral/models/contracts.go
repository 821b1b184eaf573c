package models

import "time"

// Transport-agnostic request/response contracts for the referral service.
// Handlers decode into these and encode out of them; the service never
// sees HTTP types.

// CreateReferralRequest is the caller's payload for creating a referral.
type CreateReferralRequest struct {
	ContactType  string `json:"contactType"`
	ContactValue string `json:"contactValue"`
	Channel      string `json:"channel"`
}

// CreateReferralResponse is returned after a successful create.
type CreateReferralResponse struct {
	ReferralID   string    `json:"referralId"`
	Status       Status    `json:"status"`
	ShareMessage string    `json:"shareMessage"`
	ShareURL     string    `json:"shareUrl"`
	Token        string    `json:"token"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReferralSummary is the read model for list and get.
type ReferralSummary struct {
	ReferralID    string    `json:"referralId"`
	ContactType   string    `json:"contactType"`
	ContactValue  string    `json:"contactValue"`
	Channel       string    `json:"channel"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// ReferralListResponse is one page of a referrer's referrals.
type ReferralListResponse struct {
	TotalCount int               `json:"totalCount"`
	SkipCount  int               `json:"skipCount"`
	PageSize   int               `json:"pageSize"`
	Referrals  []ReferralSummary `json:"items"`
}

// ResolveReferralResponse reports whether a link token maps to a live
// referral. Pointer fields render as JSON null on the negative path.
type ResolveReferralResponse struct {
	IsReferred        bool    `json:"isReferred"`
	ReferralCode      *string `json:"referralCode"`
	Token             *string `json:"token"`
	OnboardingVariant *string `json:"onboardingVariant"`
}

// TrackEventRequest names the lifecycle event being reported.
type TrackEventRequest struct {
	EventType string `json:"eventType"`
}
