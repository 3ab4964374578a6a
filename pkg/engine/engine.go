// Package engine wires configuration, storage, services, and HTTP handlers
// into a runnable linkage engine.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/freightdesk/linkage-engine/pkg/config"
	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/handlers"
	"github.com/freightdesk/linkage-engine/pkg/logging"
	"github.com/freightdesk/linkage-engine/pkg/metrics"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
	"github.com/freightdesk/linkage-engine/pkg/services"
)

// Engine holds the assembled service graph.
type Engine struct {
	Config   *config.Config
	DB       *database.DB
	Metrics  *metrics.Metrics
	Links    services.LinkService
	Backfill services.BackfillService

	registry  *prometheus.Registry
	audits    repositories.AuditRepository
	conflicts repositories.ConflictRepository
	sugRepo   repositories.SuggestionRepository
	logger    *zap.Logger
}

// New connects to the database, runs migrations, and builds the full
// service graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if err := migrate(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}
	logger.Info("Connected to database",
		zap.String("dsn", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	messages := repositories.NewMessageRepository(db)
	entities := repositories.NewEntityRepository(db)
	shipments := repositories.NewShipmentRepository(db)
	links := repositories.NewLinkRepository(db)
	suggestions := repositories.NewSuggestionRepository(db)
	conflicts := repositories.NewConflictRepository(db)
	authorities := repositories.NewThreadAuthorityRepository(db)
	audits := repositories.NewAuditRepository(db)

	extractor := services.NewIdentifierExtractor()
	auditor := services.NewAuditor(audits, m, logger)
	resolver := services.NewThreadAuthorityResolver(messages, entities, authorities, extractor, logger)
	matcher := services.NewShipmentMatcher(shipments, logger)
	conflictResolver := services.NewConflictResolver(cfg.Linking, logger)
	confidence := services.NewConfidenceCalculator(cfg)

	linkService := services.NewLinkService(cfg.Linking, services.LinkServiceDeps{
		Messages:    messages,
		Entities:    entities,
		Shipments:   shipments,
		Links:       links,
		Suggestions: suggestions,
		Conflicts:   conflicts,
		Extractor:   extractor,
		Authorities: resolver,
		Matcher:     matcher,
		Resolver:    conflictResolver,
		Confidence:  confidence,
		Auditor:     auditor,
		Metrics:     m,
	}, logger)

	backfill := services.NewBackfillService(cfg.Linking, services.BackfillServiceDeps{
		Messages:    messages,
		Entities:    entities,
		Shipments:   shipments,
		Links:       links,
		Extractor:   extractor,
		Authorities: resolver,
		Matcher:     matcher,
		Confidence:  confidence,
		Linker:      linkService,
		Auditor:     auditor,
		Metrics:     m,
	}, logger)

	return &Engine{
		Config:    cfg,
		DB:        db,
		Metrics:   m,
		Links:     linkService,
		Backfill:  backfill,
		registry:  registry,
		audits:    audits,
		conflicts: conflicts,
		sugRepo:   suggestions,
		logger:    logger,
	}, nil
}

// Handler returns the engine's HTTP mux with all routes registered.
func (e *Engine) Handler() *http.ServeMux {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(e.Config, e.logger).RegisterRoutes(mux)
	handlers.NewLinkHandler(e.Links, e.audits, e.conflicts, e.logger).RegisterRoutes(mux)
	handlers.NewSuggestionHandler(e.Links, e.sugRepo, e.logger).RegisterRoutes(mux)
	handlers.NewJobsHandler(e.Links, e.Backfill, e.logger).RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	return mux
}

// Close releases the engine's database pool.
func (e *Engine) Close() {
	e.DB.Close()
}

// migrate applies pending schema migrations over a short-lived database/sql
// connection; the pgx pool is opened afterwards.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
