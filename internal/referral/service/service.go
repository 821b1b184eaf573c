// Package service orchestrates the referral lifecycle: creation with
// anti-abuse throttling, listing, link resolution, and event tracking.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"capref/internal/audit"
	"capref/internal/referral/link"
	"capref/internal/referral/metrics"
	"capref/internal/referral/models"
	"capref/internal/referral/store"
	id "capref/pkg/domain"
	dErrors "capref/pkg/domain-errors"
	"capref/pkg/platform/sentinel"
	"capref/pkg/requestcontext"
)

const (
	// createWindow and maxCreatesPerWindow bound how fast one referrer
	// can mint referrals. The window is trailing and inclusive.
	createWindow        = 10 * time.Minute
	maxCreatesPerWindow = 20

	defaultPageSize = 25
	maxPageSize     = 100

	// onboardingVariant is the experiment tag handed to the install flow
	// when a resolved link proves the user was referred.
	onboardingVariant = "referal"
)

// shareMessageFormat is the text a referrer forwards; args are the
// referral code and the share URL.
const shareMessageFormat = "Join me on Carton Caps! Use my referral code %s or tap this link: %s"

// Service implements the referral use cases on top of a Store and a link
// Generator. All timestamps come from the request-scoped clock so the
// throttle window and transition times are deterministic under test.
type Service struct {
	store   store.Store
	links   link.Generator
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires the referral counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAuditPublisher wires the audit sink.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.audit = publisher
		}
	}
}

// New builds a Service. Metrics and audit default to no-ops.
func New(referrals store.Store, links link.Generator, opts ...Option) *Service {
	s := &Service{
		store:  referrals,
		links:  links,
		logger: slog.New(slog.DiscardHandler),
		audit:  audit.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a referral for the calling referrer, marks it sent, and
// persists it. Creation is throttled to maxCreatesPerWindow per trailing
// createWindow per referrer.
func (s *Service) Create(
	ctx context.Context,
	referrerUserID id.UserID,
	referrerCode string,
	req models.CreateReferralRequest,
) (*models.CreateReferralResponse, error) {
	recent, err := s.store.CountCreatedInWindow(ctx, referrerUserID, createWindow)
	if err != nil {
		return nil, fmt.Errorf("count recent referrals: %w", err)
	}
	if recent >= maxCreatesPerWindow {
		if s.metrics != nil {
			s.metrics.CreatesThrottled.Inc()
		}
		s.audit.Emit(ctx, audit.Event{
			Action: audit.ActionCreateThrottled,
			UserID: referrerUserID.String(),
			Detail: fmt.Sprintf("%d referrals in the last %s", recent, createWindow),
		})
		s.logger.WarnContext(ctx, "referral create throttled",
			"user_id", referrerUserID.String(),
			"recent_count", recent,
		)
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many referrals created, try again later")
	}

	token, shareURL, err := s.links.GenerateLink(referrerUserID, referrerCode)
	if err != nil {
		return nil, fmt.Errorf("generate referral link: %w", err)
	}

	now := requestcontext.Now(ctx)
	referral, err := models.NewReferral(
		referrerUserID,
		referrerCode,
		req.ContactType,
		req.ContactValue,
		req.Channel,
		token,
		now,
	)
	if err != nil {
		return nil, err
	}
	referral.MarkSent(now)

	if err := s.store.Add(ctx, referral); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "referral link token already exists")
		}
		return nil, fmt.Errorf("persist referral: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ReferralsCreated.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Action:     audit.ActionReferralCreated,
		ReferralID: referral.ID().String(),
		UserID:     referrerUserID.String(),
		Detail:     referral.ContactType(),
	})
	s.logger.InfoContext(ctx, "referral created",
		"referral_id", referral.ID().String(),
		"user_id", referrerUserID.String(),
		"contact_type", referral.ContactType(),
	)

	return &models.CreateReferralResponse{
		ReferralID:   referral.ID().String(),
		Status:       referral.Status(),
		ShareMessage: fmt.Sprintf(shareMessageFormat, referral.ReferrerCode(), shareURL),
		ShareURL:     shareURL,
		Token:        token,
		CreatedAt:    referral.CreatedAt(),
	}, nil
}

// List returns one page of the caller's referrals, newest first, with the
// total matching count. Page bounds are normalized: skip below zero
// becomes zero, take at or below zero becomes the default page size, and
// take above the maximum is clamped.
func (s *Service) List(
	ctx context.Context,
	referrerUserID id.UserID,
	status *models.Status,
	skip, take int,
) (*models.ReferralListResponse, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultPageSize
	}
	if take > maxPageSize {
		take = maxPageSize
	}

	var (
		total int
		page  []*models.Referral
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.CountByReferrer(gctx, referrerUserID, status)
		if err != nil {
			return fmt.Errorf("count referrals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		page, err = s.store.ListByReferrer(gctx, referrerUserID, status, skip, take)
		if err != nil {
			return fmt.Errorf("list referrals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]models.ReferralSummary, 0, len(page))
	for _, referral := range page {
		summaries = append(summaries, toSummary(referral))
	}
	return &models.ReferralListResponse{
		TotalCount: total,
		SkipCount:  skip,
		PageSize:   take,
		Referrals:  summaries,
	}, nil
}

// Get returns one of the caller's referrals. A referral that exists but
// belongs to someone else reads as not found, so callers cannot probe for
// other users' referral identifiers.
func (s *Service) Get(
	ctx context.Context,
	referrerUserID id.UserID,
	referralID id.ReferralID,
) (*models.ReferralSummary, error) {
	referral, err := s.store.GetByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "referral not found")
		}
		return nil, fmt.Errorf("get referral: %w", err)
	}
	if referral.ReferrerUserID() != referrerUserID {
		return nil, dErrors.New(dErrors.CodeNotFound, "referral not found")
	}
	summary := toSummary(referral)
	return &summary, nil
}

// Resolve answers the install-time question "was this user referred".
// A blank or unknown token is a plain negative, never an error: the
// install flow proceeds either way, just without the referred-variant
// onboarding. A hit marks the referral opened.
func (s *Service) Resolve(ctx context.Context, token string) (*models.ResolveReferralResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &models.ResolveReferralResponse{IsReferred: false}, nil
	}

	referral, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.ResolveReferralResponse{
				IsReferred: false,
				Token:      &token,
			}, nil
		}
		return nil, fmt.Errorf("resolve referral token: %w", err)
	}

	referral.MarkOpened(requestcontext.Now(ctx))
	if err := s.store.Save(ctx, referral); err != nil {
		return nil, fmt.Errorf("save resolved referral: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ReferralsResolved.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Action:     audit.ActionReferralResolved,
		ReferralID: referral.ID().String(),
		UserID:     referral.ReferrerUserID().String(),
	})
	s.logger.InfoContext(ctx, "referral link resolved",
		"referral_id", referral.ID().String(),
	)

	code := referral.ReferrerCode()
	storedToken := referral.LinkToken()
	variant := onboardingVariant
	return &models.ResolveReferralResponse{
		IsReferred:        true,
		ReferralCode:      &code,
		Token:             &storedToken,
		OnboardingVariant: &variant,
	}, nil
}

// TrackEvent applies a named lifecycle event to one of the caller's
// referrals. Tracking an event against someone else's referral is
// forbidden rather than not-found: the caller proved they hold the ID,
// so hiding existence buys nothing and the sharper error aids debugging.
func (s *Service) TrackEvent(
	ctx context.Context,
	referrerUserID id.UserID,
	referralID id.ReferralID,
	event models.EventType,
) error {
	referral, err := s.store.GetByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "referral not found")
		}
		return fmt.Errorf("get referral: %w", err)
	}
	if referral.ReferrerUserID() != referrerUserID {
		return dErrors.New(dErrors.CodeForbidden, "referral does not belong to the current user")
	}

	if err := referral.ApplyEvent(event, requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Save(ctx, referral); err != nil {
		return fmt.Errorf("save referral after event: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsTracked.WithLabelValues(string(event)).Inc()
	}
	action := audit.ActionEventTracked
	if event == models.EventCancelled {
		action = audit.ActionReferralCancelled
	}
	s.audit.Emit(ctx, audit.Event{
		Action:     action,
		ReferralID: referral.ID().String(),
		UserID:     referrerUserID.String(),
		Detail:     string(event),
	})
	s.logger.InfoContext(ctx, "referral event tracked",
		"referral_id", referral.ID().String(),
		"event", string(event),
		"status", string(referral.Status()),
	)
	return nil
}

func toSummary(referral *models.Referral) models.ReferralSummary {
	return models.ReferralSummary{
		ReferralID:    referral.ID().String(),
		ContactType:   referral.ContactType(),
		ContactValue:  referral.ContactValue(),
		Channel:       referral.Channel(),
		Status:        referral.Status(),
		CreatedAt:     referral.CreatedAt(),
		LastUpdatedAt: referral.LastUpdatedAt(),
	}
}
