package models

import (
	"regexp"
	"strings"
	"time"

	id "capref/pkg/domain"
	dErrors "capref/pkg/domain-errors"
)

// referralCodePattern constrains the referrer's own code: alphanumeric,
// 6 to 16 characters.
var referralCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,16}$`)

// Contact types a referral can target.
const (
	ContactTypeEmail = "email"
	ContactTypeSMS   = "sms"
)

// Referral is the aggregate for one tracked invitation.
//
// Invariants:
//   - ReferrerUserID is non-nil; ReferrerCode matches ^[A-Za-z0-9]{6,16}$
//   - ContactType is "email" or "sms"; ContactValue, Channel, and LinkToken
//     are non-blank
//   - Status changes only through the Mark*/Cancel transitions; once
//     Cancelled it never changes again
//   - LastUpdatedAt reflects the most recent successful transition, or the
//     creation time if none occurred
//
// Fields are unexported so nothing outside this package can assign them.
// Stores rehydrate persisted rows via Rehydrate and read via the accessors.
type Referral struct {
	id             id.ReferralID
	referrerUserID id.UserID
	referrerCode   string
	contactType    string
	contactValue   string
	channel        string
	status         Status
	linkToken      string
	createdAt      time.Time
	lastUpdatedAt  time.Time
}

// NewReferral is the validated factory. Construction is all-or-nothing:
// any invariant violation fails with a validation error naming the
// offending field and no entity is produced.
func NewReferral(
	referrerUserID id.UserID,
	referrerCode string,
	contactType string,
	contactValue string,
	channel string,
	linkToken string,
	now time.Time,
) (*Referral, error) {
	if referrerUserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "referrerUserId is required")
	}
	referrerCode = strings.TrimSpace(referrerCode)
	if referrerCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "referrerCode is required")
	}
	if !referralCodePattern.MatchString(referrerCode) {
		return nil, dErrors.New(dErrors.CodeValidation, "referrerCode format is invalid")
	}
	if strings.TrimSpace(contactValue) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "contactValue is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "channel is required")
	}
	if strings.TrimSpace(linkToken) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "linkToken is required")
	}

	normalizedType := strings.ToLower(strings.TrimSpace(contactType))
	if normalizedType != ContactTypeEmail && normalizedType != ContactTypeSMS {
		return nil, dErrors.New(dErrors.CodeValidation, "contactType must be 'email' or 'sms'")
	}

	return &Referral{
		id:             id.NewReferralID(),
		referrerUserID: referrerUserID,
		referrerCode:   referrerCode,
		contactType:    normalizedType,
		contactValue:   strings.TrimSpace(contactValue),
		channel:        strings.ToLower(strings.TrimSpace(channel)),
		status:         StatusCreated,
		linkToken:      strings.TrimSpace(linkToken),
		createdAt:      now,
		lastUpdatedAt:  now,
	}, nil
}

// Rehydrate reconstructs a referral from persisted state. It performs no
// validation; only store implementations should call it, with values that
// previously passed through NewReferral.
func Rehydrate(
	referralID id.ReferralID,
	referrerUserID id.UserID,
	referrerCode string,
	contactType string,
	contactValue string,
	channel string,
	status Status,
	linkToken string,
	createdAt time.Time,
	lastUpdatedAt time.Time,
) *Referral {
	return &Referral{
		id:             referralID,
		referrerUserID: referrerUserID,
		referrerCode:   referrerCode,
		contactType:    contactType,
		contactValue:   contactValue,
		channel:        channel,
		status:         status,
		linkToken:      linkToken,
		createdAt:      createdAt,
		lastUpdatedAt:  lastUpdatedAt,
	}
}

func (r *Referral) ID() id.ReferralID         { return r.id }
func (r *Referral) ReferrerUserID() id.UserID { return r.referrerUserID }
func (r *Referral) ReferrerCode() string      { return r.referrerCode }
func (r *Referral) ContactType() string       { return r.contactType }
func (r *Referral) ContactValue() string      { return r.contactValue }
func (r *Referral) Channel() string           { return r.channel }
func (r *Referral) Status() Status            { return r.status }
func (r *Referral) LinkToken() string         { return r.linkToken }
func (r *Referral) CreatedAt() time.Time      { return r.createdAt }
func (r *Referral) LastUpdatedAt() time.Time  { return r.lastUpdatedAt }

// transitionTo lands the referral exactly on the target status. Statuses
// between the current one and the target are backfilled implicitly, which
// makes every mark idempotent and tolerant of out-of-order event delivery.
// A cancelled referral absorbs all further transitions.
func (r *Referral) transitionTo(target Status, now time.Time) {
	if r.status == StatusCancelled {
		return
	}
	r.status = target
	r.lastUpdatedAt = now
}

// MarkSent records that the invitation left the referrer's device.
func (r *Referral) MarkSent(now time.Time) { r.transitionTo(StatusSent, now) }

// MarkOpened records that the share link was opened.
func (r *Referral) MarkOpened(now time.Time) { r.transitionTo(StatusOpened, now) }

// MarkInstalled records that the invitee installed the app.
func (r *Referral) MarkInstalled(now time.Time) { r.transitionTo(StatusInstalled, now) }

// MarkRegistered records that the invitee completed registration.
func (r *Referral) MarkRegistered(now time.Time) { r.transitionTo(StatusRegistered, now) }

// Cancel moves the referral into the absorbing cancelled state from any
// prior status. Cancelling twice is a harmless repeat.
func (r *Referral) Cancel(now time.Time) {
	r.status = StatusCancelled
	r.lastUpdatedAt = now
}

// ApplyEvent dispatches a named lifecycle event to the matching
// transition. Unknown events fail with CodeInvalidEvent.
func (r *Referral) ApplyEvent(event EventType, now time.Time) error {
	switch event {
	case EventSent:
		r.MarkSent(now)
	case EventOpened:
		r.MarkOpened(now)
	case EventInstalled:
		r.MarkInstalled(now)
	case EventRegistered:
		r.MarkRegistered(now)
	case EventCancelled:
		r.Cancel(now)
	default:
		return dErrors.Newf(dErrors.CodeInvalidEvent, "unsupported referral event %q", event)
	}
	return nil
}
