package languages

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

var tracer = otel.Tracer("languages-service")

// ErrDuplicateTranslation is returned when a translation would violate
// the uniqueness rules: one translation per (subject, locale) and one
// display name per subject.
var ErrDuplicateTranslation = errors.New("duplicate language translation")

type LanguageRow struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	IsInterface bool      `json:"is_interface" db:"is_interface"`
	FlagCode    *string   `json:"flag_code" db:"flag_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Service manages the language and translation tables. Translations are
// never updated in place: corrections delete and re-create the row.
type Service struct {
	db            *pgxpool.Pool
	logger        *slog.Logger
	defaultLocale string
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, defaultLocale string) *Service {
	return &Service{
		db:            db,
		logger:        logger.With("service", "languages"),
		defaultLocale: defaultLocale,
	}
}

// LoadDirectory reads all languages and translations into an immutable
// Directory snapshot. Called once at startup; the snapshot is shared
// read-only between user sessions.
func (s *Service) LoadDirectory(ctx context.Context) (*Directory, error) {
	ctx, span := tracer.Start(ctx, "languages.LoadDirectory")
	defer span.End()

	rows, err := s.db.Query(ctx, `SELECT code, is_interface, flag_code FROM languages`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load languages: %w", err)
	}
	defer rows.Close()

	var langs []Language
	for rows.Next() {
		var lang Language
		var flag *string
		if err := rows.Scan(&lang.Code, &lang.IsInterface, &flag); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		if flag != nil {
			lang.FlagCode = *flag
		}
		langs = append(langs, lang)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read languages: %w", err)
	}

	trRows, err := s.db.Query(ctx, `
		SELECT l.code, t.locale, t.display_name
		FROM language_translations t
		JOIN languages l ON l.id = t.language_id`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load language translations: %w", err)
	}
	defer trRows.Close()

	var translations []Translation
	for trRows.Next() {
		var tr Translation
		if err := trRows.Scan(&tr.SubjectCode, &tr.Locale, &tr.DisplayName); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		translations = append(translations, tr)
	}
	if err := trRows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read translations: %w", err)
	}

	s.logger.Info("Loaded language directory",
		"languages", len(langs),
		"translations", len(translations))

	return NewDirectory(s.defaultLocale, langs, translations), nil
}

// CreateLanguage inserts a new language. Idempotent on code.
func (s *Service) CreateLanguage(ctx context.Context, code string, isInterface bool, flagCode *string) (*LanguageRow, error) {
	ctx, span := tracer.Start(ctx, "languages.CreateLanguage")
	defer span.End()

	query := `
		INSERT INTO languages (id, code, is_interface, flag_code, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (code) DO UPDATE SET is_interface = EXCLUDED.is_interface, flag_code = EXCLUDED.flag_code
		RETURNING id, code, is_interface, flag_code, created_at`

	var row LanguageRow
	err := s.db.QueryRow(ctx, query, uuid.New(), code, isInterface, flagCode).Scan(
		&row.ID, &row.Code, &row.IsInterface, &row.FlagCode, &row.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create language %q: %w", code, err)
	}

	return &row, nil
}

// AddTranslation records the display name of subjectCode as written in
// locale. Enforces at most one translation per (subject, locale) and at
// most one display name per subject.
func (s *Service) AddTranslation(ctx context.Context, subjectCode, locale, displayName string) error {
	ctx, span := tracer.Start(ctx, "languages.AddTranslation")
	defer span.End()

	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM language_translations t
			JOIN languages l ON l.id = t.language_id
			WHERE l.code = $1 AND (t.locale = $2 OR t.display_name = $3)
		)`, subjectCode, locale, displayName).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check translation uniqueness: %w", err)
	}
	if exists {
		return ErrDuplicateTranslation
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO language_translations (id, language_id, locale, display_name, created_at)
		SELECT $1, l.id, $2, $3, NOW() FROM languages l WHERE l.code = $4`,
		uuid.New(), locale, displayName, subjectCode)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add translation for %q: %w", subjectCode, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown language %q", subjectCode)
	}

	return nil
}

// RemoveTranslation deletes one translation edge. Corrections re-create
// the edge with AddTranslation afterwards.
func (s *Service) RemoveTranslation(ctx context.Context, subjectCode, locale string) error {
	ctx, span := tracer.Start(ctx, "languages.RemoveTranslation")
	defer span.End()

	_, err := s.db.Exec(ctx, `
		DELETE FROM language_translations t
		USING languages l
		WHERE l.id = t.language_id AND l.code = $1 AND t.locale = $2`,
		subjectCode, locale)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove translation for %q: %w", subjectCode, err)
	}

	return nil
}

// DeleteLanguage removes a language and, by cascade, all of its
// translations.
func (s *Service) DeleteLanguage(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "languages.DeleteLanguage")
	defer span.End()

	_, err := s.db.Exec(ctx, `DELETE FROM languages WHERE code = $1`, code)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete language %q: %w", code, err)
	}

	return nil
}

// SeedLanguage describes one bootstrap entry: the language itself plus
// its known display names, keyed by locale. The self-loop native name is
// required.
type SeedLanguage struct {
	Code        string
	IsInterface bool
	FlagCode    *string
	Names       map[string]string
}

// Bootstrap ensures the seed languages and their translations exist.
// Safe to run on every startup; existing translations are left alone.
func (s *Service) Bootstrap(ctx context.Context, seeds []SeedLanguage) error {
	ctx, span := tracer.Start(ctx, "languages.Bootstrap")
	defer span.End()

	for _, seed := range seeds {
		if _, ok := seed.Names[seed.Code]; !ok {
			return fmt.Errorf("seed for %q is missing its native name", seed.Code)
		}

		if _, err := s.CreateLanguage(ctx, seed.Code, seed.IsInterface, seed.FlagCode); err != nil {
			return err
		}

		for locale, name := range seed.Names {
			err := s.AddTranslation(ctx, seed.Code, locale, name)
			if err != nil && !errors.Is(err, ErrDuplicateTranslation) {
				return err
			}
		}
	}

	s.logger.Info("Language bootstrap complete", "seeds", len(seeds))
	return nil
}

// GetLanguageByCode returns a language row, or nil when it is unknown.
func (s *Service) GetLanguageByCode(ctx context.Context, code string) (*LanguageRow, error) {
	ctx, span := tracer.Start(ctx, "languages.GetLanguageByCode")
	defer span.End()

	var row LanguageRow
	err := s.db.QueryRow(ctx, `
		SELECT id, code, is_interface, flag_code, created_at
		FROM languages WHERE code = $1`, code).Scan(
		&row.ID, &row.Code, &row.IsInterface, &row.FlagCode, &row.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get language %q: %w", code, err)
	}

	return &row, nil
}
