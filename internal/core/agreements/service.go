package agreements

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

var tracer = otel.Tracer("agreements-service")

// Kind identifies one required legal document.
type Kind string

const (
	KindEula    Kind = "eula"
	KindPrivacy Kind = "privacy"
)

// Kinds lists every document a user must accept during onboarding.
var Kinds = []Kind{KindEula, KindPrivacy}

type Document struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Kind       Kind      `json:"kind" db:"kind"`
	LocaleCode string    `json:"locale_code" db:"locale_code"`
	URL        string    `json:"url" db:"url"`
	Version    int       `json:"version" db:"version"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Service looks up the currently active legal documents. Documents are
// versioned rows; at most one row per (kind, locale) is active.
type Service struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With("service", "agreements"),
	}
}

// GetActiveDocument returns the active document of the given kind for
// locale, falling back to "en" and then to any active document of that
// kind. Returns (nil, nil) when no active document exists at all.
func (s *Service) GetActiveDocument(ctx context.Context, kind Kind, locale string) (*Document, error) {
	ctx, span := tracer.Start(ctx, "agreements.GetActiveDocument")
	defer span.End()

	doc, err := s.activeByLocale(ctx, kind, locale)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	if locale != "en" {
		doc, err = s.activeByLocale(ctx, kind, "en")
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}

	query := `
		SELECT id, kind, locale_code, url, version, is_active, created_at
		FROM legal_documents
		WHERE kind = $1 AND is_active = true
		ORDER BY locale_code
		LIMIT 1`

	doc = &Document{}
	err = s.db.QueryRow(ctx, query, string(kind)).Scan(
		&doc.ID, &doc.Kind, &doc.LocaleCode, &doc.URL, &doc.Version, &doc.IsActive, &doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("No active legal document", "kind", kind)
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active %s document: %w", kind, err)
	}

	return doc, nil
}

func (s *Service) activeByLocale(ctx context.Context, kind Kind, locale string) (*Document, error) {
	query := `
		SELECT id, kind, locale_code, url, version, is_active, created_at
		FROM legal_documents
		WHERE kind = $1 AND locale_code = $2 AND is_active = true`

	var doc Document
	err := s.db.QueryRow(ctx, query, string(kind), locale).Scan(
		&doc.ID, &doc.Kind, &doc.LocaleCode, &doc.URL, &doc.Version, &doc.IsActive, &doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document for locale %q: %w", kind, locale, err)
	}

	return &doc, nil
}

// PublishDocument inserts a new document version and deactivates the
// previous active one for the same (kind, locale).
func (s *Service) PublishDocument(ctx context.Context, kind Kind, locale, url string) (*Document, error) {
	ctx, span := tracer.Start(ctx, "agreements.PublishDocument")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE legal_documents SET is_active = false
		WHERE kind = $1 AND locale_code = $2 AND is_active = true`,
		string(kind), locale)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to deactivate previous %s document: %w", kind, err)
	}

	query := `
		INSERT INTO legal_documents (id, kind, locale_code, url, version, is_active, created_at)
		VALUES ($1, $2, $3, $4,
			COALESCE((SELECT MAX(version) FROM legal_documents WHERE kind = $2 AND locale_code = $3), 0) + 1,
			true, NOW())
		RETURNING id, kind, locale_code, url, version, is_active, created_at`

	var doc Document
	err = tx.QueryRow(ctx, query, uuid.New(), string(kind), locale, url).Scan(
		&doc.ID, &doc.Kind, &doc.LocaleCode, &doc.URL, &doc.Version, &doc.IsActive, &doc.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to publish %s document: %w", kind, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit document publish: %w", err)
	}

	s.logger.Info("Published legal document", "kind", kind, "locale", locale, "version", doc.Version)
	return &doc, nil
}
