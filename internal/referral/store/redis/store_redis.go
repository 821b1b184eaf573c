// Package redis provides a Redis-backed referral store for deployments
// where multiple instances share state without a relational database.
// Semantics match the memory and postgres backends exactly.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"capref/internal/referral/models"
	id "capref/pkg/domain"
	"capref/pkg/platform/sentinel"
	"capref/pkg/requestcontext"
)

// Key layout:
//
//	referral:{id}          JSON snapshot of one referral
//	referral:token:{token} referral id owning the token (SETNX guards uniqueness)
//	referrals:owner:{user} ZSET of referral ids scored by created_at (unix nanos)
const (
	recordKeyPrefix = "referral:"
	tokenKeyPrefix  = "referral:token:"
	ownerKeyPrefix  = "referrals:owner:"
)

// Store persists referrals in Redis.
type Store struct {
	client *redis.Client
}

// New constructs a Redis-backed referral store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// record is the stored JSON shape. The domain entity stays free of
// serialization tags; conversion happens here.
type record struct {
	ID             string    `json:"id"`
	ReferrerUserID string    `json:"referrer_user_id"`
	ReferrerCode   string    `json:"referrer_code"`
	ContactType    string    `json:"contact_type"`
	ContactValue   string    `json:"contact_value"`
	Channel        string    `json:"channel"`
	Status         string    `json:"status"`
	LinkToken      string    `json:"link_token"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

func toRecord(referral *models.Referral) record {
	return record{
		ID:             referral.ID().String(),
		ReferrerUserID: referral.ReferrerUserID().String(),
		ReferrerCode:   referral.ReferrerCode(),
		ContactType:    referral.ContactType(),
		ContactValue:   referral.ContactValue(),
		Channel:        referral.Channel(),
		Status:         string(referral.Status()),
		LinkToken:      referral.LinkToken(),
		CreatedAt:      referral.CreatedAt().UTC(),
		LastUpdatedAt:  referral.LastUpdatedAt().UTC(),
	}
}

func (r record) toModel() (*models.Referral, error) {
	referralID, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt referral record id %q: %w", r.ID, err)
	}
	ownerID, err := uuid.Parse(r.ReferrerUserID)
	if err != nil {
		return nil, fmt.Errorf("corrupt referral record owner %q: %w", r.ReferrerUserID, err)
	}
	return models.Rehydrate(
		id.ReferralID(referralID),
		id.UserID(ownerID),
		r.ReferrerCode,
		r.ContactType,
		r.ContactValue,
		r.Channel,
		models.Status(r.Status),
		r.LinkToken,
		r.CreatedAt,
		r.LastUpdatedAt,
	), nil
}

func (s *Store) Add(ctx context.Context, referral *models.Referral) error {
	payload, err := json.Marshal(toRecord(referral))
	if err != nil {
		return fmt.Errorf("marshal referral: %w", err)
	}

	// Claim the token first; losing the claim means a collision and the
	// existing referral must not be overwritten.
	claimed, err := s.client.SetNX(ctx, tokenKeyPrefix+referral.LinkToken(), referral.ID().String(), 0).Result()
	if err != nil {
		return fmt.Errorf("claim link token: %w", err)
	}
	if !claimed {
		return sentinel.ErrConflict
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+referral.ID().String(), payload, 0)
	pipe.ZAdd(ctx, ownerKeyPrefix+referral.ReferrerUserID().String(), redis.Z{
		Score:  float64(referral.CreatedAt().UnixNano()),
		Member: referral.ID().String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll the token claim back so a retry is not spuriously rejected.
		s.client.Del(context.WithoutCancel(ctx), tokenKeyPrefix+referral.LinkToken())
		return fmt.Errorf("store referral: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, referral *models.Referral) error {
	key := recordKeyPrefix + referral.ID().String()
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check referral exists: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}

	payload, err := json.Marshal(toRecord(referral))
	if err != nil {
		return fmt.Errorf("marshal referral: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("save referral: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	return s.getRecord(ctx, recordKeyPrefix+referralID.String())
}

func (s *Store) GetByToken(ctx context.Context, token string) (*models.Referral, error) {
	referralID, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve link token: %w", err)
	}
	return s.getRecord(ctx, recordKeyPrefix+referralID)
}

func (s *Store) ListByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status, skip, take int) ([]*models.Referral, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		return []*models.Referral{}, nil
	}

	matches, err := s.ownerReferrals(ctx, referrerUserID, status)
	if err != nil {
		return nil, err
	}
	if skip >= len(matches) {
		return []*models.Referral{}, nil
	}
	end := skip + take
	if end > len(matches) {
		end = len(matches)
	}
	return matches[skip:end], nil
}

func (s *Store) CountByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status) (int, error) {
	if status == nil {
		total, err := s.client.ZCard(ctx, ownerKeyPrefix+referrerUserID.String()).Result()
		if err != nil {
			return 0, fmt.Errorf("count referrals: %w", err)
		}
		return int(total), nil
	}
	matches, err := s.ownerReferrals(ctx, referrerUserID, status)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (s *Store) CountCreatedInWindow(ctx context.Context, referrerUserID id.UserID, window time.Duration) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)
	count, err := s.client.ZCount(ctx,
		ownerKeyPrefix+referrerUserID.String(),
		strconv.FormatInt(cutoff.UnixNano(), 10), // inclusive lower bound
		"+inf",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("count referrals in window: %w", err)
	}
	return int(count), nil
}

func (s *Store) ExistsDuplicate(ctx context.Context, referrerUserID id.UserID, contactType, normalizedContactValue string, window time.Duration) (bool, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)
	matches, err := s.ownerReferrals(ctx, referrerUserID, nil)
	if err != nil {
		return false, err
	}
	for _, referral := range matches {
		if strings.EqualFold(referral.ContactType(), contactType) &&
			strings.EqualFold(referral.ContactValue(), normalizedContactValue) &&
			!referral.CreatedAt().Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) getRecord(ctx context.Context, key string) (*models.Referral, error) {
	payload, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get referral: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal referral: %w", err)
	}
	return rec.toModel()
}

// ownerReferrals loads every referral of one owner in newest-first order,
// optionally filtered by status. The ZSET already yields created_at
// descending with id descending on ties, matching the other backends.
func (s *Store) ownerReferrals(ctx context.Context, referrerUserID id.UserID, status *models.Status) ([]*models.Referral, error) {
	ids, err := s.client.ZRevRange(ctx, ownerKeyPrefix+referrerUserID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list referral ids: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Referral{}, nil
	}

	keys := make([]string, len(ids))
	for i, referralID := range ids {
		keys[i] = recordKeyPrefix + referralID
	}
	payloads, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}

	matches := make([]*models.Referral, 0, len(payloads))
	for _, payload := range payloads {
		raw, ok := payload.(string)
		if !ok {
			// Index entry without a record: skip rather than fail the page.
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal referral: %w", err)
		}
		referral, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		if status != nil && referral.Status() != *status {
			continue
		}
		matches = append(matches, referral)
	}
	return matches, nil
}
