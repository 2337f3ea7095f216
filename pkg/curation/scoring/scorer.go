// Package scoring rates how well a phrase will play: a local heuristic plus
// knowledge-base, popularity, category and Wikipedia signals, each capped by
// its weight and summed to a 0-100 score.
//
// Lookups fail open. A source that errors contributes 0 points and its error
// is recorded in the breakdown; ScorePhrase itself only fails when the
// context is done.
package scoring

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wordsonphone/phrasecurator/pkg/curation/keywords"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/lookup"
)

// Sources are the external signals a scorer consults
type Sources interface {
	Sitelinks(ctx context.Context, label string) (int, error)
	RedditEngagement(ctx context.Context, phrase string) (int, error)
	FindArticle(ctx context.Context, phrase string) (*lookup.SearchResult, error)
	Pageviews(ctx context.Context, title string) (int, error)
}

// Config controls weighting and classification
type Config struct {
	Weights          Weights
	Thresholds       Thresholds
	PopCulture       []string
	CategoryKeywords map[string][]string
	RecencyKeywords  []string
	BatchSize        int
	BatchDelay       time.Duration
}

// DefaultConfig returns default weights and thresholds
func DefaultConfig() Config {
	return Config{
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
		BatchSize:  10,
		BatchDelay: time.Second,
	}
}

// Options tune a single scoring call
type Options struct {
	Source       string `json:"source,omitempty"`
	SkipReddit   bool   `json:"skipReddit,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// Signals are the raw values behind the external components
type Signals struct {
	Sitelinks  int    `json:"sitelinks"`
	Engagement int    `json:"engagement"`
	Article    string `json:"article,omitempty"`
	Pageviews  int    `json:"pageviews"`
}

// Breakdown explains a total score
type Breakdown struct {
	Components map[string]int    `json:"components"`
	Errors     map[string]string `json:"errors,omitempty"`
	Local      LocalDetail       `json:"local"`
	Signals    Signals           `json:"signals"`
	Total      int               `json:"total"`
	Verdict    Verdict           `json:"verdict"`
}

// Result is a scored phrase
type Result struct {
	Phrase     string    `json:"phrase"`
	Category   string    `json:"category"`
	Source     string    `json:"source,omitempty"`
	TotalScore int       `json:"totalScore"`
	Band       Band      `json:"band"`
	Verdict    Verdict   `json:"verdict"`
	Breakdown  Breakdown `json:"breakdown"`
	Cached     bool      `json:"cached"`
	ScoredAt   time.Time `json:"scoredAt"`
}

// HasErrors reports whether any component failed
func (r *Result) HasErrors() bool {
	return len(r.Breakdown.Errors) > 0
}

// Clone returns a deep copy
func (r *Result) Clone() *Result {
	c := *r
	c.Breakdown.Components = make(map[string]int, len(r.Breakdown.Components))
	for k, v := range r.Breakdown.Components {
		c.Breakdown.Components[k] = v
	}
	if r.Breakdown.Errors != nil {
		c.Breakdown.Errors = make(map[string]string, len(r.Breakdown.Errors))
		for k, v := range r.Breakdown.Errors {
			c.Breakdown.Errors[k] = v
		}
	}
	return &c
}

// Scorer computes quality scores
type Scorer struct {
	cfg         Config
	sources     Sources
	cache       Cache
	logger      *logging.Logger
	popCulture  map[string]bool
	catKeywords map[string]*keywords.Matcher
	recency     *keywords.Matcher
	now         func() time.Time
}

// NewScorer creates a scorer. sources and cache may be nil: without sources
// only local and category components are computed, without a cache every
// call goes upstream.
func NewScorer(cfg Config, sources Sources, cache Cache, logger *logging.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}

	s := &Scorer{
		cfg:         cfg,
		sources:     sources,
		cache:       cache,
		logger:      logger.WithComponent("scoring"),
		popCulture:  make(map[string]bool, len(cfg.PopCulture)),
		catKeywords: make(map[string]*keywords.Matcher, len(cfg.CategoryKeywords)),
		recency:     keywords.New(cfg.RecencyKeywords),
		now:         time.Now,
	}
	for _, c := range cfg.PopCulture {
		s.popCulture[c] = true
	}
	for c, kws := range cfg.CategoryKeywords {
		s.catKeywords[c] = keywords.New(kws)
	}
	return s
}

// Thresholds returns the classification thresholds in use
func (s *Scorer) Thresholds() Thresholds {
	return s.cfg.Thresholds
}

// ScorePhrase scores phrase within category. Cached results are returned
// unless opts.ForceRefresh is set; results with component errors are never
// cached.
func (s *Scorer) ScorePhrase(ctx context.Context, phrase, category string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(phrase, category, opts.Source)
	if s.cache != nil && !opts.ForceRefresh {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Score cache read failed", map[string]interface{}{"phrase": phrase, "error": err.Error()})
		} else if ok {
			cached.Cached = true
			return cached, nil
		}
	}

	weights := s.cfg.Weights.ForSource(opts.Source)
	result := s.localResult(phrase, category, opts.Source, weights)
	bd := &result.Breakdown

	if s.sources != nil {
		var mu sync.Mutex
		record := func(component string, points int, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bd.Errors[component] = err.Error()
				s.logger.Warn("Scoring lookup failed", map[string]interface{}{
					"phrase":    phrase,
					"component": component,
					"error":     err.Error(),
				})
				points = 0
			}
			bd.Components[component] = points
		}

		var g errgroup.Group
		if weights.KnowledgeBase > 0 {
			g.Go(func() error {
				n, err := s.sources.Sitelinks(ctx, phrase)
				mu.Lock()
				bd.Signals.Sitelinks = n
				mu.Unlock()
				record(ComponentKnowledgeBase, SitelinkPoints(n, weights.KnowledgeBase), err)
				return nil
			})
		}
		if weights.Popularity > 0 && !opts.SkipReddit {
			g.Go(func() error {
				n, err := s.sources.RedditEngagement(ctx, phrase)
				mu.Lock()
				bd.Signals.Engagement = n
				mu.Unlock()
				record(ComponentPopularity, PopularityPoints(n, weights.Popularity), err)
				return nil
			})
		}
		if weights.Wikipedia > 0 {
			g.Go(func() error {
				title, views, err := s.articleViews(ctx, phrase)
				mu.Lock()
				bd.Signals.Article = title
				bd.Signals.Pageviews = views
				mu.Unlock()
				record(ComponentWikipedia, PageviewPoints(views, weights.Wikipedia), err)
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	s.finish(result)

	if s.cache != nil && !result.HasErrors() {
		if err := s.cache.Put(ctx, key, result.Clone()); err != nil {
			s.logger.Warn("Score cache write failed", map[string]interface{}{"phrase": phrase, "error": err.Error()})
		}
	}

	s.logger.Debug("Phrase scored", map[string]interface{}{
		"phrase":   phrase,
		"category": category,
		"total":    result.TotalScore,
		"verdict":  string(result.Verdict),
	})
	return result, nil
}

func (s *Scorer) articleViews(ctx context.Context, phrase string) (string, int, error) {
	article, err := s.sources.FindArticle(ctx, phrase)
	if err != nil {
		return "", 0, err
	}
	if article == nil || article.Title == "" {
		return "", 0, nil
	}
	views, err := s.sources.Pageviews(ctx, article.Title)
	return article.Title, views, err
}

// LocalOnly scores a phrase without any external lookup
func (s *Scorer) LocalOnly(phrase, category, source string) *Result {
	result := s.localResult(phrase, category, source, s.cfg.Weights.ForSource(source))
	s.finish(result)
	return result
}

func (s *Scorer) localResult(phrase, category, source string, weights Weights) *Result {
	local := LocalHeuristics(phrase, s.recency)
	localPts := local.Total() * weights.Local / 40
	if localPts > weights.Local {
		localPts = weights.Local
	}

	components := map[string]int{
		ComponentLocal:         localPts,
		ComponentKnowledgeBase: 0,
		ComponentPopularity:    0,
		ComponentCategory:      CategoryBoost(phrase, s.popCulture[category], s.catKeywords[category], weights.Category),
	}
	if weights.Wikipedia > 0 {
		components[ComponentWikipedia] = 0
	}

	return &Result{
		Phrase:   strings.TrimSpace(phrase),
		Category: category,
		Source:   source,
		Breakdown: Breakdown{
			Components: components,
			Errors:     map[string]string{},
			Local:      local,
		},
	}
}

func (s *Scorer) finish(r *Result) {
	total := 0
	for _, pts := range r.Breakdown.Components {
		total += pts
	}
	if total > 100 {
		total = 100
	}
	r.TotalScore = total
	r.Band, r.Verdict = s.cfg.Thresholds.Classify(total)
	r.Breakdown.Total = total
	r.Breakdown.Verdict = r.Verdict
	r.ScoredAt = s.now().UTC()
}
