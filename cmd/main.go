package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"
	"google.golang.org/grpc"

	"github.com/LexiPalCo/word-service/config"
	"github.com/LexiPalCo/word-service/internal/core/agreements"
	"github.com/LexiPalCo/word-service/internal/core/languages"
	"github.com/LexiPalCo/word-service/internal/core/localization"
	"github.com/LexiPalCo/word-service/internal/core/onboarding"
	"github.com/LexiPalCo/word-service/internal/core/telegram"
	"github.com/LexiPalCo/word-service/internal/core/users"
	"github.com/LexiPalCo/word-service/internal/infra/postgres"
	redisinfra "github.com/LexiPalCo/word-service/internal/infra/redis"
	"github.com/LexiPalCo/word-service/pkg/logger"
	"github.com/LexiPalCo/word-service/pkg/telemetry"
)

func main() {
	mainContext, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defaultLogger, loggerProvider, err := logger.NewObservableLogger(&cfg)
	if err != nil {
		slog.Warn("otlp log export unavailable, using local logger", slog.String("error", err.Error()))
		defaultLogger = logger.NewLogger(&cfg)
	}
	slog.SetDefault(defaultLogger)
	if loggerProvider != nil {
		defer func() {
			if err := loggerProvider.Shutdown(context.Background()); err != nil {
				slog.Error("failed to shutdown logger provider", slog.String("error", err.Error()))
			}
		}()
	}

	conn, err := postgres.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	metricExporter, err := otlpmetricgrpc.New(mainContext,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent("word-service")),
	)
	if err != nil {
		slog.Error("failed to initialize otlp exporter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider := metric.NewMeterProvider(metric.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("word-service"),
	)), metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))))
	otel.SetMeterProvider(provider)

	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown metric provider", slog.String("error", err.Error()))
		}
	}()

	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		slog.Error("failed to start runtime instrumentation", slog.String("error", err.Error()))
	}

	if err := telemetry.InitBusinessMetrics(provider); err != nil {
		slog.Error("failed to initialize business metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		slog.Error("failed to initialize jaeger exporter", slog.String("error", err.Error()))
	} else {
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String("word-service"),
			)),
		)
		otel.SetTracerProvider(tracerProvider)
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
			}
		}()
	}

	instrumentedConn, err := telemetry.NewInstrumentedPool(provider, conn)
	if err != nil {
		slog.Error("failed to create instrumented pool", slog.String("error", err.Error()))
	}

	localeFS := localization.EmbeddedLocales()
	if cfg.LocalesDir != "" {
		localeFS = os.DirFS(cfg.LocalesDir)
	}

	catalog, err := localization.LoadCatalog(localeFS, cfg.DefaultLocale, defaultLogger)
	if err != nil {
		slog.Error("failed to load content catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	textGens := localization.NewTextGeneratorRegistry()
	layoutGens := localization.NewLayoutGeneratorRegistry()
	localization.RegisterBuiltinGenerators(textGens, layoutGens)
	resolver := localization.NewResolver(catalog, textGens, layoutGens, defaultLogger)

	languageService := languages.NewService(conn, defaultLogger, cfg.DefaultLocale)
	if err := languageService.Bootstrap(mainContext, seedLanguages()); err != nil {
		slog.Error("failed to bootstrap languages", slog.String("error", err.Error()))
		os.Exit(1)
	}

	directory, err := languageService.LoadDirectory(mainContext)
	if err != nil {
		slog.Error("failed to load language directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	admins, err := cfg.GetTelegramAdmins()
	if err != nil {
		slog.Error("failed to parse telegram admins", slog.String("error", err.Error()))
		os.Exit(1)
	}

	agreementService := agreements.NewService(conn, defaultLogger)
	userService := users.NewService(conn, defaultLogger, admins)

	var sessionStore onboarding.Store
	redisClient, err := redisinfra.Init(cfg)
	if err != nil {
		slog.Warn("redis unavailable, keeping sessions in memory", slog.String("error", err.Error()))
		sessionStore = onboarding.NewMemoryStore(cfg.SessionTTL())
	} else {
		defer redisClient.Close()
		sessionStore = onboarding.NewRedisStore(redisClient, cfg.SessionTTL())
	}

	machine := onboarding.NewMachine(resolver, directory, agreementService, userService, sessionStore, defaultLogger)

	botService, err := telegram.NewBotService(cfg.TelegramBotToken, cfg.TelegramDebug, machine, userService, resolver, defaultLogger)
	if err != nil {
		slog.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go botService.Start(mainContext)

	app := fiber.New(cfg.Fiber())
	app.Use(otelfiber.Middleware())
	app.Use(slogfiber.New(defaultLogger))

	app.Get("/health", func(c *fiber.Ctx) error {
		var one int
		if err := instrumentedConn.QueryRow(c.UserContext(), "select 1").Scan(&one); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		slog.Info("Starting server", slog.String("address", cfg.ServerAddress))
		if err := app.Listen(cfg.ServerAddress); err != nil {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-mainContext.Done()
	slog.Info("Shutting down")

	if err := app.Shutdown(); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
}

func strPtr(s string) *string { return &s }

// seedLanguages returns the languages the bot ships with. Bootstrap is
// idempotent, so new entries can be added between releases.
func seedLanguages() []languages.SeedLanguage {
	return []languages.SeedLanguage{
		{
			Code: "en", IsInterface: true, FlagCode: strPtr("gb"),
			Names: map[string]string{
				"en": "English", "ru": "Английский", "uk": "Англійська", "es": "Inglés",
			},
		},
		{
			Code: "ru", IsInterface: true, FlagCode: strPtr("ru"),
			Names: map[string]string{
				"en": "Russian", "ru": "Русский", "uk": "Російська", "es": "Ruso",
			},
		},
		{
			Code: "uk", IsInterface: false, FlagCode: strPtr("ua"),
			Names: map[string]string{
				"en": "Ukrainian", "ru": "Украинский", "uk": "Українська", "es": "Ucraniano",
			},
		},
		{
			Code: "es", IsInterface: false, FlagCode: strPtr("es"),
			Names: map[string]string{
				"en": "Spanish", "ru": "Испанский", "uk": "Іспанська", "es": "Español",
			},
		},
	}
}
