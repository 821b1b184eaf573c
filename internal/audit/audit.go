// Package audit records referral lifecycle actions for operational
// visibility. Emission is best-effort and never blocks or fails the
// request path; a full inbox drops the event with a warning.
package audit

import (
	"context"
	"log/slog"
	"time"

	"capref/pkg/requestcontext"
)

// Actions recorded by the referral service.
const (
	ActionReferralCreated   = "referral_created"
	ActionCreateThrottled   = "referral_create_throttled"
	ActionReferralResolved  = "referral_resolved"
	ActionEventTracked      = "referral_event_tracked"
	ActionReferralCancelled = "referral_cancelled"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Action     string
	ReferralID string
	UserID     string
	Detail     string
	RequestID  string
	Timestamp  time.Time
}

// Publisher accepts events from domain services.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// ChannelPublisher queues events for an out-of-band worker.
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewChannelPublisher creates a publisher with the given inbox capacity.
func NewChannelPublisher(logger *slog.Logger, buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues an event, stamping it with request-scoped metadata.
// A full inbox drops the event rather than blocking the caller.
func (p *ChannelPublisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event", "action", event.Action)
	}
}

// Inbox exposes the queue for the worker.
func (p *ChannelPublisher) Inbox() <-chan Event {
	return p.inbox
}

// Worker consumes audit events from a channel and records them. It keeps
// background processing testable without wiring queue implementations.
type Worker struct {
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			w.logger.Info("audit",
				"action", event.Action,
				"referral_id", event.ReferralID,
				"user_id", event.UserID,
				"detail", event.Detail,
				"request_id", event.RequestID,
				"timestamp", event.Timestamp.UTC().Format(time.RFC3339Nano),
			)
		}
	}
}

// Nop is a Publisher that discards every event; used when auditing is
// not wired, so services need no nil checks.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
