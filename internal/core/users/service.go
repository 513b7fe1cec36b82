package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("users-service")

type User struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TelegramID        int64     `json:"telegram_id" db:"telegram_id"`
	Username          string    `json:"username" db:"username"`
	LocaleCode        string    `json:"locale_code" db:"locale_code"`
	Timezone          string    `json:"timezone" db:"timezone"`
	TimeFormat        string    `json:"time_format" db:"time_format"`
	DailyWords        bool      `json:"daily_words" db:"daily_words"`
	Challenges        bool      `json:"challenges" db:"challenges"`
	EulaVersion       int       `json:"eula_version" db:"eula_version"`
	PrivacyVersion    int       `json:"privacy_version" db:"privacy_version"`
	EulaAcceptedAt    time.Time `json:"eula_accepted_at" db:"eula_accepted_at"`
	PrivacyAcceptedAt time.Time `json:"privacy_accepted_at" db:"privacy_accepted_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the validated result of a completed onboarding flow. It is
// the only way a user row comes into existence.
type Profile struct {
	TelegramID        int64
	Username          string
	LocaleCode        string
	Timezone          string
	TimeFormat        string
	DailyWords        bool
	Challenges        bool
	EulaVersion       int
	PrivacyVersion    int
	EulaAcceptedAt    time.Time
	PrivacyAcceptedAt time.Time
}

type Service struct {
	db     *pgxpool.Pool
	logger *slog.Logger
	admins []int64
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, admins []int64) *Service {
	return &Service{
		db:     db,
		logger: logger.With("service", "users"),
		admins: admins,
	}
}

// SaveUser commits a finished profile. Re-running with the same telegram
// id overwrites the previous profile, so a retried confirmation is safe.
func (s *Service) SaveUser(ctx context.Context, p Profile) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "users.SaveUser")
	defer span.End()

	query := `
		INSERT INTO users (id, telegram_id, username, locale_code, timezone, time_format,
			daily_words, challenges, eula_version, privacy_version,
			eula_accepted_at, privacy_accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			locale_code = EXCLUDED.locale_code,
			timezone = EXCLUDED.timezone,
			time_format = EXCLUDED.time_format,
			daily_words = EXCLUDED.daily_words,
			challenges = EXCLUDED.challenges,
			eula_version = EXCLUDED.eula_version,
			privacy_version = EXCLUDED.privacy_version,
			eula_accepted_at = EXCLUDED.eula_accepted_at,
			privacy_accepted_at = EXCLUDED.privacy_accepted_at,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		uuid.New(), p.TelegramID, p.Username, p.LocaleCode, p.Timezone, p.TimeFormat,
		p.DailyWords, p.Challenges, p.EulaVersion, p.PrivacyVersion,
		p.EulaAcceptedAt, p.PrivacyAcceptedAt,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to save user %d: %w", p.TelegramID, err)
	}

	s.logger.Info("User profile saved", "telegram_id", p.TelegramID, "user_id", id)
	return id, nil
}

// GetUserByTelegramID returns the stored user, or nil when the telegram
// account has not completed onboarding.
func (s *Service) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.GetUserByTelegramID")
	defer span.End()

	query := `
		SELECT id, telegram_id, username, locale_code, timezone, time_format,
			daily_words, challenges, eula_version, privacy_version,
			eula_accepted_at, privacy_accepted_at, created_at, updated_at
		FROM users WHERE telegram_id = $1`

	var u User
	err := s.db.QueryRow(ctx, query, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.LocaleCode, &u.Timezone, &u.TimeFormat,
		&u.DailyWords, &u.Challenges, &u.EulaVersion, &u.PrivacyVersion,
		&u.EulaAcceptedAt, &u.PrivacyAcceptedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}

	return &u, nil
}

// UpdateUserLocale switches the interface language of an existing user.
func (s *Service) UpdateUserLocale(ctx context.Context, telegramID int64, locale string) error {
	ctx, span := tracer.Start(ctx, "users.UpdateUserLocale")
	defer span.End()

	tag, err := s.db.Exec(ctx, `
		UPDATE users SET locale_code = $1, updated_at = NOW() WHERE telegram_id = $2`,
		locale, telegramID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update locale for user %d: %w", telegramID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown user %d", telegramID)
	}

	return nil
}

// IsAdmin reports whether the telegram account is configured as an
// administrator.
func (s *Service) IsAdmin(telegramID int64) bool {
	for _, id := range s.admins {
		if id == telegramID {
			return true
		}
	}
	return false
}
