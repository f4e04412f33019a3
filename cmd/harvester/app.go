package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/database"
	"github.com/helixir/disease-literature-harvester/internal/dedup"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/events"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/observability"
	"github.com/helixir/disease-literature-harvester/internal/papersources/catalog"
	"github.com/helixir/disease-literature-harvester/internal/repository"
	"github.com/helixir/disease-literature-harvester/migrations"
)

const metricsNamespace = "harvester"

// app holds the components shared by the harvest and serve commands.
// Persistence and publishing are opened on demand.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	catalog *catalog.Catalog

	db        *database.DB
	store     *repository.PgCorpusRepository
	publisher *events.KafkaPublisher
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	})
}

func newApp(cfg *config.Config, logger zerolog.Logger) *app {
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(metricsNamespace),
		catalog: catalog.New(cfg.Sources, cfg.Harvest.YearsBack),
	}
}

// defaults are the request defaults taken from the harvest config.
func (a *app) defaults() harvest.Defaults {
	return harvest.Defaults{
		MaxResultsPerSource: a.cfg.Harvest.MaxResultsPerSource,
		YearsBack:           a.cfg.Harvest.YearsBack,
	}
}

// openStore connects to PostgreSQL, applies migrations when configured and
// creates the corpus repository.
func (a *app) openStore(ctx context.Context) error {
	db, err := database.New(ctx, &a.cfg.Database, a.logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.logger.Info().Msg("database connection established")

	if a.cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, migrations.FS, a.logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				a.logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	a.store = repository.NewPgCorpusRepository(db)
	return nil
}

func (a *app) openPublisher() error {
	p, err := events.NewKafkaPublisher(a.cfg.Kafka, a.logger, a.metrics)
	if err != nil {
		return fmt.Errorf("create kafka publisher: %w", err)
	}
	a.publisher = p
	a.logger.Info().Strs("brokers", a.cfg.Kafka.Brokers).Str("topic", a.cfg.Kafka.Topic).Msg("kafka publisher ready")
	return nil
}

// runner wires the scheduler and deduplicator with whatever store and
// publisher are open.
func (a *app) runner() (*harvest.Runner, error) {
	priority, err := a.cfg.Dedup.PrioritySources()
	if err != nil {
		return nil, fmt.Errorf("dedup priority: %w", err)
	}

	pageSizes := make(map[domain.SourceID]int)
	for _, id := range domain.AllSources() {
		if sc, ok := a.cfg.Sources.Lookup(id); ok && sc.PageSize > 0 {
			pageSizes[id] = sc.PageSize
		}
	}

	scheduler := harvest.NewScheduler(
		a.catalog.Registry,
		a.catalog.Limiters,
		a.catalog.Normalizer,
		harvest.Config{
			Workers:        a.cfg.Harvest.MaxConcurrentStreams,
			MaxAttempts:    a.cfg.Harvest.MaxAttempts,
			RequestTimeout: a.cfg.Harvest.RequestTimeout,
			Backoff:        harvest.Backoff{Base: a.cfg.Harvest.BackoffBase, Max: a.cfg.Harvest.BackoffMax},
			PageSizes:      pageSizes,
		},
		a.logger,
		a.metrics,
	)

	var opts []harvest.RunnerOption
	if a.store != nil {
		opts = append(opts, harvest.WithStore(a.store))
	}
	if a.publisher != nil {
		opts = append(opts, harvest.WithPublisher(a.publisher))
	}
	return harvest.NewRunner(scheduler, dedup.Config{
		Priority:       priority,
		TitleThreshold: a.cfg.Dedup.TitleThreshold,
	}, a.logger, a.metrics, opts...), nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close kafka publisher")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
