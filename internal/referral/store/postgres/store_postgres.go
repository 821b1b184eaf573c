// Package postgres provides the durable relational store backed by
// PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"capref/internal/referral/models"
	id "capref/pkg/domain"
	"capref/pkg/platform/sentinel"
	"capref/pkg/requestcontext"
)

// uniqueViolation is the Postgres error code raised when the link_token
// unique index rejects an insert.
const uniqueViolation = "23505"

// Store persists referrals in the referrals table (migrations/).
type Store struct {
	db *sql.DB
}

// New constructs a Postgres-backed referral store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const referralColumns = `id, referrer_user_id, referrer_code, contact_type, contact_value, channel, status, link_token, created_at, last_updated_at`

func (s *Store) Add(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (` + referralColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(referral.ID()),
		uuid.UUID(referral.ReferrerUserID()),
		referral.ReferrerCode(),
		referral.ContactType(),
		referral.ContactValue(),
		referral.Channel(),
		string(referral.Status()),
		referral.LinkToken(),
		referral.CreatedAt(),
		referral.LastUpdatedAt(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, referral *models.Referral) error {
	query := `
		UPDATE referrals
		SET status = $2, last_updated_at = $3
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(referral.ID()),
		string(referral.Status()),
		referral.LastUpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("update referral: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update referral rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, referralID id.ReferralID) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(referralID)))
}

func (s *Store) GetByToken(ctx context.Context, token string) (*models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE link_token = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, token))
}

func (s *Store) ListByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status, skip, take int) ([]*models.Referral, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		return []*models.Referral{}, nil
	}

	query := `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE referrer_user_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(referrerUserID), statusArg(status), skip, take)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	referrals := make([]*models.Referral, 0, take)
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		referrals = append(referrals, referral)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list referrals rows: %w", err)
	}
	return referrals, nil
}

func (s *Store) CountByReferrer(ctx context.Context, referrerUserID id.UserID, status *models.Status) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM referrals
		WHERE referrer_user_id = $1
		  AND ($2::text IS NULL OR status = $2)
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(referrerUserID), statusArg(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

func (s *Store) CountCreatedInWindow(ctx context.Context, referrerUserID id.UserID, window time.Duration) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)
	query := `
		SELECT COUNT(*)
		FROM referrals
		WHERE referrer_user_id = $1 AND created_at >= $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(referrerUserID), cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals in window: %w", err)
	}
	return count, nil
}

func (s *Store) ExistsDuplicate(ctx context.Context, referrerUserID id.UserID, contactType, normalizedContactValue string, window time.Duration) (bool, error) {
	cutoff := requestcontext.Now(ctx).Add(-window)
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM referrals
			WHERE referrer_user_id = $1
			  AND LOWER(contact_type) = LOWER($2)
			  AND LOWER(contact_value) = LOWER($3)
			  AND created_at >= $4
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(referrerUserID), contactType, normalizedContactValue, cutoff).Scan(&exists); err != nil {
		return false, fmt.Errorf("check duplicate referral: %w", err)
	}
	return exists, nil
}

func statusArg(status *models.Status) sql.NullString {
	if status == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*status), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row *sql.Row) (*models.Referral, error) {
	referral, err := scanReferral(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return referral, err
}

func scanReferral(row rowScanner) (*models.Referral, error) {
	var (
		referralID     uuid.UUID
		referrerUserID uuid.UUID
		referrerCode   string
		contactType    string
		contactValue   string
		channel        string
		status         string
		linkToken      string
		createdAt      time.Time
		lastUpdatedAt  time.Time
	)
	if err := row.Scan(
		&referralID, &referrerUserID, &referrerCode,
		&contactType, &contactValue, &channel,
		&status, &linkToken, &createdAt, &lastUpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan referral: %w", err)
	}

	return models.Rehydrate(
		id.ReferralID(referralID),
		id.UserID(referrerUserID),
		referrerCode,
		contactType,
		contactValue,
		channel,
		models.Status(status),
		linkToken,
		createdAt.UTC(),
		lastUpdatedAt.UTC(),
	), nil
}
