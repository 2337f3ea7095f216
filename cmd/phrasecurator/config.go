package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/wordsonphone/phrasecurator/pkg/curation/bloom"
	"github.com/wordsonphone/phrasecurator/pkg/curation/duplicates"
	"github.com/wordsonphone/phrasecurator/pkg/curation/export"
	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
	"github.com/wordsonphone/phrasecurator/pkg/curation/quota"
	"github.com/wordsonphone/phrasecurator/pkg/curation/recency"
	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/config"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/lookup"
	"github.com/wordsonphone/phrasecurator/pkg/search"
	"github.com/wordsonphone/phrasecurator/pkg/storage/postgres"
	"github.com/wordsonphone/phrasecurator/pkg/storage/scorecache"
	"github.com/wordsonphone/phrasecurator/pkg/util"
)

// loadConfig loads configuration from file or uses defaults
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		// Try default config path
		defaultPath, err := config.GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		}
	}

	return config.LoadConfig(configPath)
}

// commonFlags are accepted by every subcommand
type commonFlags struct {
	configFile  string
	jsonOutput  bool
	quiet       bool
	askPassword bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configFile, "config", "", "Configuration file path")
	fs.BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")
	fs.BoolVar(&c.quiet, "quiet", false, "Minimal output")
	fs.BoolVar(&c.askPassword, "W", false, "Prompt for the database password")
	return c
}

// fail prints err with a suggestion and exits
func fail(jsonOutput bool, err error) {
	if jsonOutput {
		util.PrintJSONError(err)
	} else {
		fmt.Fprintln(os.Stderr, util.FormatError(err))
	}
	os.Exit(1)
}

// app owns the components a command needs. Everything is built on first
// use so that commands like validate never touch the database.
type app struct {
	cfg    *config.Config
	flags  *commonFlags
	logger *logging.Logger

	db      *postgres.Database
	store   *postgres.Store
	cache   *scorecache.Cache
	filters *bloom.Filters
	index   *search.Index
	lookup  *lookup.Client
	scorer  *scoring.Scorer
}

func newApp(flags *commonFlags) (*app, error) {
	cfg, err := loadConfig(flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if flags.quiet {
		level = "error"
	}
	logger, err := logging.ConfigureFromSettings(level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	return &app{cfg: cfg, flags: flags, logger: logger}, nil
}

// mustApp builds the app or exits
func mustApp(flags *commonFlags) *app {
	a, err := newApp(flags)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	return a
}

func (a *app) databaseURL() (string, error) {
	if !a.flags.askPassword {
		return a.cfg.Database.URL, nil
	}
	u, err := url.Parse(a.cfg.Database.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	password, err := util.PromptPassword("Database password: ")
	if err != nil {
		return "", err
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

// openStore connects to Postgres
func (a *app) openStore(ctx context.Context) (*postgres.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	connStr, err := a.databaseURL()
	if err != nil {
		return nil, err
	}
	db, err := postgres.NewDatabase(ctx, &postgres.DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   a.cfg.Database.MaxConnections,
		ConnectTimeout:   time.Duration(a.cfg.Database.ConnectTimeout) * time.Second,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.store = postgres.NewStore(db)
	return a.store, nil
}

// lockWriter opens the store and takes the single-writer lock
func (a *app) lockWriter(ctx context.Context) (*postgres.Store, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.db.AcquireWriterLock(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openCache opens the score cache, or returns nil when it is disabled
func (a *app) openCache() (*scorecache.Cache, error) {
	if a.cache != nil || !a.cfg.Cache.Enabled {
		return a.cache, nil
	}
	c, err := scorecache.Open(a.cfg.Cache.Path, a.logger)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return c, nil
}

// bloomFilters returns the per-category filters, restored from the cache's
// snapshots for this database when available. Categories without a snapshot
// are built from the store on first use.
func (a *app) bloomFilters(ctx context.Context) (*bloom.Filters, error) {
	if a.filters != nil {
		return a.filters, nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.filters = bloom.New(store, bloom.Options{
		BitsPerElement: a.cfg.Bloom.BitsPerElement,
		HashFunctions:  a.cfg.Bloom.HashFunctions,
		MinCapacity:    a.cfg.Bloom.MinCapacity,
	}, a.logger)

	cache, err := a.openCache()
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if n, err := cache.RestoreFilters(ctx, scorecache.StoreIdentity(a.cfg.Database.URL), a.filters); err != nil {
			a.logger.Warn("Failed to restore bloom filters", map[string]interface{}{"error": err.Error()})
		} else if n > 0 {
			a.logger.Debug("Restored bloom filters", map[string]interface{}{"categories": n})
		}
	}
	return a.filters, nil
}

// saveFilters snapshots rebuilt filters into the score cache
func (a *app) saveFilters(ctx context.Context) {
	if a.filters == nil || a.cache == nil {
		return
	}
	if _, err := a.cache.SaveFilters(ctx, scorecache.StoreIdentity(a.cfg.Database.URL), a.filters); err != nil {
		a.logger.Warn("Failed to save bloom filters", map[string]interface{}{"error": err.Error()})
	}
}

func (a *app) detector(ctx context.Context) (*duplicates.Detector, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	var prefilter duplicates.Prefilter
	if a.cfg.Duplicates.UseBloomFilter {
		filters, err := a.bloomFilters(ctx)
		if err != nil {
			return nil, err
		}
		prefilter = filters
	}
	return duplicates.NewDetector(store, prefilter, duplicates.Options{
		FirstWordLimit: a.cfg.Duplicates.FirstWordLimit,
		Normalizer: normalize.Options{
			MaxWords:  a.cfg.Normalizer.MaxWords,
			MinLength: a.cfg.Normalizer.MinLength,
			MaxLength: a.cfg.Normalizer.MaxLength,
		},
	}, a.logger), nil
}

func (a *app) lookupClient() *lookup.Client {
	if a.lookup == nil {
		s := a.cfg.Scoring
		a.lookup = lookup.NewClient(lookup.Config{
			WikidataEndpoint:  s.WikidataEndpoint,
			RedditEndpoint:    s.RedditEndpoint,
			WikipediaEndpoint: s.WikipediaEndpoint,
			PageviewsEndpoint: s.PageviewsEndpoint,
			UserAgent:         s.UserAgent,
			Timeout:           a.cfg.ScoringTimeout(),
			RequestsPerSecond: s.RequestsPerSecond,
		}, a.logger)
	}
	return a.lookup
}

// qualityScorer builds the scorer. With offline set no external lookups
// are made.
func (a *app) qualityScorer(offline bool) (*scoring.Scorer, error) {
	if a.scorer != nil {
		return a.scorer, nil
	}
	s := a.cfg.Scoring
	cfg := scoring.Config{
		Thresholds: scoring.Thresholds{
			Excellent: s.ExcellentThreshold,
			Accept:    s.AutoAcceptThreshold,
			Review:    s.ReviewThreshold,
			Warning:   s.WarningThreshold,
		},
		PopCulture:       s.PopCultureSet,
		CategoryKeywords: s.CategoryKeywords,
		RecencyKeywords:  s.RecencyKeywords,
		BatchSize:        s.BatchSize,
		BatchDelay:       a.cfg.BatchDelay(),
	}

	var sources scoring.Sources
	if !offline {
		sources = a.lookupClient()
	}

	var cache scoring.Cache
	c, err := a.openCache()
	if err != nil {
		return nil, err
	}
	if c != nil {
		cache = c
	} else {
		cache = scoring.NewMemoryCache()
	}

	a.scorer = scoring.NewScorer(cfg, sources, cache, a.logger)
	return a.scorer, nil
}

func (a *app) quotaTracker(ctx context.Context) (*quota.Tracker, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return quota.NewTracker(store, store, quota.Options{
		DefaultQuota:     a.cfg.Quota.DefaultQuota,
		WarningThreshold: a.cfg.Quota.WarningThreshold,
	}, a.logger), nil
}

func (a *app) recencyTracker(ctx context.Context) (*recency.Tracker, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return recency.NewTracker(store, store, recency.Options{
		DefaultTargetPercentage: a.cfg.Recency.DefaultTargetPercentage,
		Keywords:                a.cfg.Recency.Keywords,
	}, a.logger), nil
}

func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return export.NewExporter(store, a.cfg.Export.MaxPhraseChars, a.logger), nil
}

// searchIndex opens the on-disk curator index
func (a *app) searchIndex() (*search.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	idx, err := search.Open(a.cfg.Search.IndexPath, a.logger)
	if err != nil {
		return nil, err
	}
	a.index = idx
	return idx, nil
}

// close releases everything the command opened
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("Failed to close search index", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close score cache", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.db != nil {
		if err := a.db.ReleaseWriterLock(ctx); err != nil {
			a.logger.Warn("Failed to release writer lock", map[string]interface{}{"error": err.Error()})
		}
		a.db.Close()
	}
	a.logger.Sync()
}
