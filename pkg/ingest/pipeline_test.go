package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/curation/bloom"
	"github.com/wordsonphone/phrasecurator/pkg/curation/duplicates"
	"github.com/wordsonphone/phrasecurator/pkg/curation/quota"
	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/storage/memory"
)

type fixture struct {
	store   *memory.Store
	filters *bloom.Filters
	scorer  *scoring.Scorer
	quotas  *quota.Tracker
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SeedDefaultCategories(ctx))

	logger := logging.NewNop()
	cfg := scoring.DefaultConfig()
	cfg.BatchDelay = 0
	cfg.PopCulture = []string{"Movies & TV", "Music"}
	return &fixture{
		store:   store,
		filters: bloom.New(store, bloom.DefaultOptions(), logger),
		scorer:  scoring.NewScorer(cfg, nil, nil, logger),
		quotas:  quota.NewTracker(store, store, quota.DefaultOptions(), logger),
		ctx:     ctx,
	}
}

func (f *fixture) pipeline(withScorer bool) *Pipeline {
	logger := logging.NewNop()
	detector := duplicates.NewDetector(f.store, f.filters, duplicates.Options{}, logger)
	var scorer Scorer
	if withScorer {
		scorer = f.scorer
	}
	return NewPipeline(f.store, detector, f.quotas, scorer, f.filters, logger)
}

func TestImportAddsAndRejects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.InsertPhrases(f.ctx, []phrases.Phrase{
		{Text: "Taylor Swift", Category: "Music", FirstWord: "taylor"},
	}))

	report, err := f.pipeline(false).Import(f.ctx, []Candidate{
		{Phrase: "lady gaga", Category: "Music", SourceProvider: "gemini", ModelID: "flash"},
		{Phrase: "Taylor Swift", Category: "Music"},
		{Phrase: "LADY GAGA", Category: "Music"},
		{Phrase: "", Category: "Music"},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 2, report.ByReason[phrases.ReasonExactDuplicate])
	assert.Equal(t, 1, report.ByReason[phrases.ReasonInvalidPhrase])

	found, err := f.store.FindExact(f.ctx, "Lady Gaga")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lady", found[0].FirstWord)
	require.NotNil(t, found[0].SourceProvider)
	assert.Equal(t, "gemini", *found[0].SourceProvider)
	require.NotNil(t, found[0].ModelID)
	assert.Equal(t, "flash", *found[0].ModelID)

	assert.True(t, f.filters.MightExist("Lady Gaga", "Music"))
}

func TestImportDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline(false).Import(f.ctx, []Candidate{{Phrase: "Pizza Party", Category: "Food & Drink"}}, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.True(t, report.DryRun)

	n, err := f.store.CountPhrases(f.ctx, phrases.Query{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportEnforcesQuotaWithinRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpsertCategory(f.ctx, phrases.Category{Name: "Sports", Quota: 2}))

	candidates := []Candidate{
		{Phrase: "Super Bowl", Category: "Sports"},
		{Phrase: "World Cup", Category: "Sports"},
		{Phrase: "Tour De France", Category: "Sports"},
	}
	report, err := f.pipeline(false).Import(f.ctx, candidates, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 1, report.ByReason[phrases.ReasonQuotaExceeded])
	assert.Equal(t, "Tour De France", report.Rejected[0].Phrase)
	assert.Empty(t, report.Warnings)

	forced, err := f.pipeline(false).Import(f.ctx, []Candidate{{Phrase: "Tour De France", Category: "Sports"}}, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, forced.Added)
	assert.Contains(t, forced.Warnings[0], "forced past quota")
}

func TestImportZeroQuotaFreezesCategory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.quotas.SetQuota(f.ctx, "Places", 0))

	report, err := f.pipeline(false).Import(f.ctx, []Candidate{{Phrase: "Eiffel Tower", Category: "Places"}}, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Added)
	assert.Equal(t, phrases.ReasonQuotaExceeded, report.Rejected[0].Reason)
}

func TestImportRejectsLowScores(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline(true).Import(f.ctx, []Candidate{
		{Phrase: "Quantum Entanglement", Category: "Technology & Science"},
		{Phrase: "Star Wars", Category: "Movies & TV"},
	}, Options{Score: true, MinScore: 30})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, phrases.ReasonLowScore, report.Rejected[0].Reason)
	assert.Equal(t, "Quantum Entanglement", report.Rejected[0].Phrase)

	require.Len(t, report.Phrases, 1)
	require.NotNil(t, report.Phrases[0].Score)
	assert.GreaterOrEqual(t, *report.Phrases[0].Score, 30)
}

func TestImportStorageFailureAbortsRun(t *testing.T) {
	f := newFixture(t)
	logger := logging.NewNop()
	detector := duplicates.NewDetector(f.store, nil, duplicates.Options{}, logger)
	p := NewPipeline(failingInserter{}, detector, nil, nil, nil, logger)

	report, err := p.Import(f.ctx, []Candidate{{Phrase: "Pizza Party", Category: "Food & Drink"}}, Options{})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Errors, 1)
}

type failingInserter struct{}

func (failingInserter) InsertPhrases(context.Context, []phrases.Phrase) error {
	return fmt.Errorf("connection reset")
}

func TestReportLinesSummarizeLongRejectionLists(t *testing.T) {
	r := &Report{Total: 30, ByReason: map[phrases.Reason]int{}}
	for i := 0; i < 25; i++ {
		r.reject(Candidate{Phrase: fmt.Sprintf("Phrase %d", i), Category: "Music"}, phrases.ReasonExactDuplicate, "exists")
	}

	lines := r.Lines()
	assert.Equal(t, "Added 0 of 30 phrases (25 skipped, 0 errors)", lines[0])
	assert.Len(t, lines, 1+MaxListedRejections+1)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "... and 5 more rejections"))
	assert.Contains(t, lines[len(lines)-1], "EXACT_DUPLICATE=25")
}
