package telemetry

import (
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Telegram Bot metrics
	TelegramMessagesTotal api.Int64Counter
	TelegramErrorsTotal   api.Int64Counter

	// Onboarding metrics
	OnboardingSessionsStarted   api.Int64Counter
	OnboardingSessionsCompleted api.Int64Counter
	OnboardingSessionsRestarted api.Int64Counter
	ToggleAnomaliesTotal        api.Int64Counter
	InvalidProceedAttemptsTotal api.Int64Counter
	ValidationFailuresTotal     api.Int64Counter
	CommitFailuresTotal         api.Int64Counter

	// Localization metrics
	MissingCatalogKeysTotal  api.Int64Counter
	MalformedLayoutNodeTotal api.Int64Counter

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	meter := provider.Meter("business")

	var err error

	TelegramMessagesTotal, err = meter.Int64Counter("telegram.messages.total",
		api.WithDescription("Total Telegram updates processed by type"))
	if err != nil {
		return err
	}

	TelegramErrorsTotal, err = meter.Int64Counter("telegram.errors.total",
		api.WithDescription("Total Telegram bot errors by type"))
	if err != nil {
		return err
	}

	OnboardingSessionsStarted, err = meter.Int64Counter("onboarding.sessions.started.total",
		api.WithDescription("Total onboarding sessions started"))
	if err != nil {
		return err
	}

	OnboardingSessionsCompleted, err = meter.Int64Counter("onboarding.sessions.completed.total",
		api.WithDescription("Total onboarding sessions committed to storage"))
	if err != nil {
		return err
	}

	OnboardingSessionsRestarted, err = meter.Int64Counter("onboarding.sessions.restarted.total",
		api.WithDescription("Total onboarding sessions discarded by a mid-flow restart"))
	if err != nil {
		return err
	}

	ToggleAnomaliesTotal, err = meter.Int64Counter("onboarding.toggle_anomalies.total",
		api.WithDescription("Duplicate terms-toggle events detected"))
	if err != nil {
		return err
	}

	InvalidProceedAttemptsTotal, err = meter.Int64Counter("onboarding.invalid_proceed.total",
		api.WithDescription("Proceed attempts rejected because terms were not fully accepted"))
	if err != nil {
		return err
	}

	ValidationFailuresTotal, err = meter.Int64Counter("onboarding.validation_failures.total",
		api.WithDescription("User input rejected by validation, by field"))
	if err != nil {
		return err
	}

	CommitFailuresTotal, err = meter.Int64Counter("onboarding.commit_failures.total",
		api.WithDescription("Profile commit attempts that failed"))
	if err != nil {
		return err
	}

	MissingCatalogKeysTotal, err = meter.Int64Counter("localization.missing_keys.total",
		api.WithDescription("Content lookups that degraded to the missing-key sentinel"))
	if err != nil {
		return err
	}

	MalformedLayoutNodeTotal, err = meter.Int64Counter("localization.malformed_layout_nodes.total",
		api.WithDescription("Static layout nodes skipped because of missing fields"))
	if err != nil {
		return err
	}

	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation"))
	if err != nil {
		return err
	}

	return nil
}
