package scoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/lookup"
)

type stubSources struct {
	mu         sync.Mutex
	sitelinks  map[string]int
	engagement map[string]int
	articles   map[string]string
	views      map[string]int

	sitelinkErr error
	searchErr   error

	sitelinkCalls int32
	redditCalls   int32
}

func (s *stubSources) Sitelinks(_ context.Context, label string) (int, error) {
	atomic.AddInt32(&s.sitelinkCalls, 1)
	if s.sitelinkErr != nil {
		return 0, s.sitelinkErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sitelinks[label], nil
}

func (s *stubSources) RedditEngagement(_ context.Context, phrase string) (int, error) {
	atomic.AddInt32(&s.redditCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engagement[phrase], nil
}

func (s *stubSources) FindArticle(_ context.Context, phrase string) (*lookup.SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if title, ok := s.articles[phrase]; ok {
		return &lookup.SearchResult{Title: title, TotalHits: 10, Query: phrase}, nil
	}
	return &lookup.SearchResult{TotalHits: len(phrase)}, nil
}

func (s *stubSources) Pageviews(_ context.Context, title string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[title], nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PopCulture = []string{"Movies & TV", "Music"}
	cfg.CategoryKeywords = map[string][]string{
		"Movies & TV":          {"star", "wars", "movie"},
		"Technology & Science": {"robot", "computer"},
	}
	cfg.RecencyKeywords = []string{"tiktok", "ai"}
	cfg.BatchDelay = 0
	return cfg
}

func TestObscurePhraseIsRejected(t *testing.T) {
	scorer := NewScorer(testConfig(), &stubSources{}, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Quantum Entanglement", "Technology & Science", Options{})
	require.NoError(t, err)

	assert.Less(t, result.TotalScore, 20)
	assert.Equal(t, BandReject, result.Band)
	assert.Equal(t, VerdictAutoReject, result.Verdict)
	assert.Equal(t, LocalDetail{Simplicity: 6, Length: 6}, result.Breakdown.Local)
	assert.Equal(t, 12, result.Breakdown.Components[ComponentLocal])
	assert.Equal(t, 5, result.Breakdown.Components[ComponentCategory])
	assert.Zero(t, result.Breakdown.Components[ComponentKnowledgeBase])
	assert.Zero(t, result.Breakdown.Components[ComponentPopularity])
	assert.Equal(t, result.TotalScore, result.Breakdown.Total)
}

func TestWellKnownPhraseIsAccepted(t *testing.T) {
	sources := &stubSources{
		sitelinks:  map[string]int{"Star Wars": 120},
		engagement: map[string]int{"Star Wars": 50000},
	}
	scorer := NewScorer(testConfig(), sources, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Star Wars", "Movies & TV", Options{})
	require.NoError(t, err)

	assert.Equal(t, 30, result.Breakdown.Components[ComponentKnowledgeBase])
	assert.Equal(t, 15, result.Breakdown.Components[ComponentPopularity])
	assert.Equal(t, 32, result.Breakdown.Components[ComponentLocal])
	assert.Equal(t, 14, result.Breakdown.Components[ComponentCategory])
	assert.Equal(t, 91, result.TotalScore)
	assert.Equal(t, BandExcellent, result.Band)
	assert.Equal(t, VerdictAutoAccept, result.Verdict)
	assert.Equal(t, 120, result.Breakdown.Signals.Sitelinks)
	assert.Empty(t, result.Breakdown.Errors)
}

func TestLookupFailureFailsOpen(t *testing.T) {
	sources := &stubSources{
		sitelinkErr: errors.New("wikidata unavailable"),
		engagement:  map[string]int{"Pizza Party": 2000},
	}
	cache := NewMemoryCache()
	scorer := NewScorer(testConfig(), sources, cache, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Pizza Party", "Food & Drink", Options{})
	require.NoError(t, err)

	assert.Zero(t, result.Breakdown.Components[ComponentKnowledgeBase])
	assert.Equal(t, "wikidata unavailable", result.Breakdown.Errors[ComponentKnowledgeBase])
	assert.Equal(t, 10, result.Breakdown.Components[ComponentPopularity])
	assert.Zero(t, cache.Len(), "results with errors are not cached")
}

func TestCachedResults(t *testing.T) {
	sources := &stubSources{sitelinks: map[string]int{"Jaws": 60}}
	cache := NewMemoryCache()
	scorer := NewScorer(testConfig(), sources, cache, logging.NewNop())
	ctx := context.Background()

	first, err := scorer.ScorePhrase(ctx, "Jaws", "Movies & TV", Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := scorer.ScorePhrase(ctx, "jaws", "Movies & TV", Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sources.sitelinkCalls))

	_, err = scorer.ScorePhrase(ctx, "Jaws", "Movies & TV", Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&sources.sitelinkCalls))

	// different source, different key
	_, err = scorer.ScorePhrase(ctx, "Jaws", "Movies & TV", Options{Source: SourceWikipedia})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&sources.sitelinkCalls))
	assert.Equal(t, 2, cache.Len())
}

func TestSkipReddit(t *testing.T) {
	sources := &stubSources{engagement: map[string]int{"Pizza Party": 50000}}
	scorer := NewScorer(testConfig(), sources, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Pizza Party", "Food & Drink", Options{SkipReddit: true})
	require.NoError(t, err)
	assert.Zero(t, result.Breakdown.Components[ComponentPopularity])
	assert.Zero(t, atomic.LoadInt32(&sources.redditCalls))
}

func TestWikipediaSourceWeights(t *testing.T) {
	sources := &stubSources{
		engagement: map[string]int{"Taylor Swift": 50000},
		articles:   map[string]string{"Taylor Swift": "Taylor Swift"},
		views:      map[string]int{"Taylor Swift": 2_500_000},
	}
	scorer := NewScorer(testConfig(), sources, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Taylor Swift", "Music", Options{Source: SourceWikipedia})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Breakdown.Components[ComponentPopularity])
	assert.Equal(t, 10, result.Breakdown.Components[ComponentWikipedia])
	assert.Equal(t, "Taylor Swift", result.Breakdown.Signals.Article)
	assert.Equal(t, 2_500_000, result.Breakdown.Signals.Pageviews)

	other, err := scorer.ScorePhrase(context.Background(), "Taylor Swift", "Music", Options{})
	require.NoError(t, err)
	_, hasWiki := other.Breakdown.Components[ComponentWikipedia]
	assert.False(t, hasWiki)
}

func TestScoreWithoutSources(t *testing.T) {
	scorer := NewScorer(testConfig(), nil, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Robot Dance", "Technology & Science", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Breakdown.Errors)
	assert.Equal(t, result.Breakdown.Components[ComponentLocal]+result.Breakdown.Components[ComponentCategory], result.TotalScore)
}

func TestScoreBatch(t *testing.T) {
	sources := &stubSources{sitelinks: map[string]int{"Jaws": 60, "Titanic": 8}}
	cfg := testConfig()
	cfg.BatchSize = 2
	scorer := NewScorer(cfg, sources, nil, logging.NewNop())

	items := []Item{
		{Phrase: "Jaws", Category: "Movies & TV"},
		{Phrase: "Titanic", Category: "Movies & TV"},
		{Phrase: "Quantum Entanglement", Category: "Technology & Science"},
	}
	var seen int32
	results, err := scorer.ScoreBatch(context.Background(), items, BatchOptions{
		OnResult: func(int, *Result) { atomic.AddInt32(&seen, 1) },
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&seen))

	for i, r := range results {
		assert.Equal(t, items[i].Phrase, r.Phrase)
	}
	assert.Equal(t, 30, results[0].Breakdown.Components[ComponentKnowledgeBase])
	assert.Equal(t, 15, results[1].Breakdown.Components[ComponentKnowledgeBase])
	assert.Equal(t, VerdictAutoReject, results[2].Verdict)
}

func TestScoreBatchCancelledFallsBackToLocal(t *testing.T) {
	scorer := NewScorer(testConfig(), &stubSources{}, nil, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := scorer.ScoreBatch(ctx, []Item{{Phrase: "Jaws", Category: "Movies & TV"}}, BatchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Contains(t, results[0].Breakdown.Errors, "batch")
	assert.Positive(t, results[0].Breakdown.Components[ComponentLocal])
}

func TestRankByProminence(t *testing.T) {
	sources := &stubSources{
		articles: map[string]string{"Taylor Swift": "Taylor Swift", "Jaws": "Jaws (film)"},
		views:    map[string]int{"Taylor Swift": 900000, "Jaws (film)": 120000},
	}

	ranked, err := RankByProminence(context.Background(), sources, []string{"Jaws", "Obscure Thing", "Taylor Swift"})
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "Taylor Swift", ranked[0].Phrase)
	assert.Equal(t, MethodPageviews, ranked[0].Method)
	assert.Equal(t, 900000, ranked[0].Score)
	assert.Equal(t, "Jaws (film)", ranked[1].Article)
	assert.Equal(t, MethodTotalHits, ranked[2].Method)
	assert.Equal(t, len("Obscure Thing"), ranked[2].Score)
}

func TestRankByProminenceSearchError(t *testing.T) {
	sources := &stubSources{searchErr: errors.New("search down")}

	ranked, err := RankByProminence(context.Background(), sources, []string{"Jaws"})
	require.NoError(t, err)
	assert.Equal(t, MethodError, ranked[0].Method)
	assert.Zero(t, ranked[0].Score)
	assert.Equal(t, "search down", ranked[0].Error)
}

func TestTotalClampedAtHundred(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = Weights{Local: 60, KnowledgeBase: 30, Popularity: 15, Category: 60}
	sources := &stubSources{
		sitelinks:  map[string]int{"Star Wars": 120},
		engagement: map[string]int{"Star Wars": 50000},
	}
	scorer := NewScorer(cfg, sources, nil, logging.NewNop())

	result, err := scorer.ScorePhrase(context.Background(), "Star Wars", "Movies & TV", Options{})
	require.NoError(t, err)

	assert.Equal(t, 48, result.Breakdown.Components[ComponentLocal])
	assert.Equal(t, 56, result.Breakdown.Components[ComponentCategory])
	sum := 0
	for _, pts := range result.Breakdown.Components {
		sum += pts
	}
	assert.Equal(t, 149, sum, "components keep their unclamped points")

	assert.Equal(t, 100, result.TotalScore)
	assert.Equal(t, 100, result.Breakdown.Total)
	assert.Equal(t, BandExcellent, result.Band)
	assert.Equal(t, VerdictAutoAccept, result.Verdict)
	assert.Equal(t, VerdictAutoAccept, result.Breakdown.Verdict)
}

type noArticleSources struct {
	stubSources
}

func (*noArticleSources) FindArticle(context.Context, string) (*lookup.SearchResult, error) {
	return nil, nil
}

func TestRankByProminenceNoArticle(t *testing.T) {
	ranked, err := RankByProminence(context.Background(), &noArticleSources{}, []string{"Jaws", "Taylor Swift"})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for _, p := range ranked {
		assert.Equal(t, MethodTotalHits, p.Method)
		assert.Zero(t, p.Score)
		assert.Empty(t, p.Article)
	}
	assert.Equal(t, "Jaws", ranked[0].Phrase)
}

func TestRankByProminenceInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ranked, err := RankByProminence(ctx, &stubSources{}, []string{"Jaws", "Taylor Swift"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ranked)
}
