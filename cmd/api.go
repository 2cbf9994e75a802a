package cmd

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/aggregator"
	"example.com/concertbot/internal/api"
	"example.com/concertbot/internal/cache"
	"example.com/concertbot/internal/ledger"
	"example.com/concertbot/internal/messaging"
	"example.com/concertbot/internal/metrics"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/repositories"
	"example.com/concertbot/internal/search"
	"example.com/concertbot/internal/services"
	"example.com/concertbot/internal/sources"
	"example.com/concertbot/internal/sources/scraper"
	"example.com/concertbot/internal/sources/ticketing"
	"example.com/concertbot/internal/sources/verified"
	"example.com/concertbot/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long:  `Start the HTTP API server for subscription management and interactive concert search`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	deps, err := buildDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	server := api.NewServer(cfg, api.Dependencies{
		Users:          deps.users,
		Favorites:      deps.favorites,
		Dispatcher:     deps.dispatcher,
		Aggregator:     deps.aggregator,
		Collector:      deps.collector,
		Tracer:         deps.tracer,
		TrackedArtists: deps.trackedArtists,
	})

	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API server error")
		return err
	}

	log.Info().Msg("API server shut down gracefully")
	return nil
}

// dependencies is the shared wiring used by both the api and worker commands
type dependencies struct {
	db             *gorm.DB
	searchCache    *cache.SearchCache
	tracer         tracing.Tracer
	collector      *metrics.Collector
	users          *repositories.UserRepository
	favorites      *repositories.FavoriteRepository
	ledger         *ledger.Ledger
	aggregator     *aggregator.Aggregator
	dispatcher     *services.Dispatcher
	trackedArtists []string
}

func (d *dependencies) close() {
	if d.searchCache != nil {
		if err := d.searchCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
	if d.tracer != nil {
		d.tracer.Close()
	}
}

func buildDependencies(cfg config.Config) (*dependencies, error) {
	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}

	searchCache, err := cache.NewSearchCache(cfg.Redis, cfg.Notifier.CacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		searchCache = nil
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	indexer, err := search.NewNotificationIndexer(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without audit indexing")
		indexer = nil
	}

	collector := metrics.NewCollector()

	srcs, trackedArtists := buildSources(cfg)
	agg := aggregator.New(
		srcs,
		aggregator.WithCache(searchCache),
		aggregator.WithMetrics(collector),
		aggregator.WithPolicy(cfg.Notifier.Policy),
		aggregator.WithPerSourceTimeout(cfg.Notifier.SourceTimeout),
	)

	users := repositories.NewUserRepository(db)
	favorites := repositories.NewFavoriteRepository(db)
	notificationLedger := ledger.New(db)
	sender := messaging.NewTelegramSender(cfg.Telegram)

	dispatcher := services.NewDispatcher(
		cfg.Notifier,
		users,
		favorites,
		notificationLedger,
		agg,
		sender,
		indexer,
		tracer,
		collector,
	)

	return &dependencies{
		db:             db,
		searchCache:    searchCache,
		tracer:         tracer,
		collector:      collector,
		users:          users,
		favorites:      favorites,
		ledger:         notificationLedger,
		aggregator:     agg,
		dispatcher:     dispatcher,
		trackedArtists: trackedArtists,
	}, nil
}

// buildSources assembles the source chain in priority order: curated table
// first, official sites second, the live ticketing API last. It also reports
// the artists the curated and scraped sources know about.
func buildSources(cfg config.Config) ([]sources.Source, []string) {
	table := verified.NewTable()
	official := scraper.New(scraper.Config{Timeout: cfg.Scraper.Timeout})

	srcs := []sources.Source{table, official}
	if cfg.Ticketing.APIKey == "" {
		log.Warn().Msg("Ticketing API key not provided, live ticketing source disabled")
	} else {
		srcs = append(srcs, ticketing.NewClient(cfg.Ticketing))
	}

	seen := make(map[string]bool)
	var artists []string
	for _, artist := range append(table.Artists(), official.SupportedArtists()...) {
		key := sources.NormalizeArtist(artist)
		if seen[key] {
			continue
		}
		seen[key] = true
		artists = append(artists, artist)
	}
	sort.Strings(artists)

	return srcs, artists
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, nil
}
