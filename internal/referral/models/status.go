package models

import (
	"strings"

	dErrors "capref/pkg/domain-errors"
)

// Status is the lifecycle state of a referral.
//
// The promotable states form a total order:
//
//	Created < Sent < Opened < Installed < Registered
//
// Cancelled sits outside that order. It is absorbing: once a referral is
// cancelled no transition changes it again, and it must never be treated
// as "after Registered" by rank comparisons. Use Precedes instead of
// comparing raw positions.
type Status string

const (
	StatusCreated    Status = "Created"
	StatusSent       Status = "Sent"
	StatusOpened     Status = "Opened"
	StatusInstalled  Status = "Installed"
	StatusRegistered Status = "Registered"
	StatusCancelled  Status = "Cancelled"
)

// statusRank orders the promotable statuses. Cancelled is deliberately
// absent so it never participates in order comparisons.
var statusRank = map[Status]int{
	StatusCreated:    0,
	StatusSent:       1,
	StatusOpened:     2,
	StatusInstalled:  3,
	StatusRegistered: 4,
}

var canonicalStatuses = map[Status]bool{
	StatusCreated:    true,
	StatusSent:       true,
	StatusOpened:     true,
	StatusInstalled:  true,
	StatusRegistered: true,
	StatusCancelled:  true,
}

// ParseStatus constructs a Status from external input, case-insensitively.
// Returns CodeInvalidInput for unknown values.
func ParseStatus(s string) (Status, error) {
	for canonical := range canonicalStatuses {
		if strings.EqualFold(string(canonical), s) {
			return canonical, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown referral status %q", s)
}

// IsValid reports whether the status is one of the canonical values.
func (s Status) IsValid() bool {
	return canonicalStatuses[s]
}

// Precedes reports whether s comes strictly before other in the promotion
// order. Cancelled (or any unknown status) on either side returns false:
// the absorbing state participates in no ordering.
func (s Status) Precedes(other Status) bool {
	selfRank, selfOrdered := statusRank[s]
	otherRank, otherOrdered := statusRank[other]
	return selfOrdered && otherOrdered && selfRank < otherRank
}

// AtLeast reports whether s is the same as other or follows it in the
// promotion order. Cancelled on either side returns false.
func (s Status) AtLeast(other Status) bool {
	selfRank, selfOrdered := statusRank[s]
	otherRank, otherOrdered := statusRank[other]
	return selfOrdered && otherOrdered && selfRank >= otherRank
}

func (s Status) String() string { return string(s) }

// EventType names a lifecycle event reported by the client.
type EventType string

const (
	EventSent       EventType = "Sent"
	EventOpened     EventType = "Opened"
	EventInstalled  EventType = "Installed"
	EventRegistered EventType = "Registered"
	EventCancelled  EventType = "Cancelled"
)

var knownEvents = map[EventType]bool{
	EventSent:       true,
	EventOpened:     true,
	EventInstalled:  true,
	EventRegistered: true,
	EventCancelled:  true,
}

// ParseEventType constructs an EventType from external input,
// case-insensitively. Unknown values fail with CodeInvalidEvent.
func ParseEventType(s string) (EventType, error) {
	for canonical := range knownEvents {
		if strings.EqualFold(string(canonical), s) {
			return canonical, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidEvent, "unsupported referral event %q", s)
}

func (e EventType) String() string { return string(e) }
