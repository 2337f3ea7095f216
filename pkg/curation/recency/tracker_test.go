package recency

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/storage/memory"
)

func scored(text, category string, score int, recent bool) phrases.Phrase {
	return phrases.Phrase{Text: text, Category: category, Score: &score, Recent: recent}
}

func newTracker(store *memory.Store) *Tracker {
	return NewTracker(store, store, Options{
		DefaultTargetPercentage: 10,
		Keywords:                []string{"tiktok", "netflix", "ai"},
	}, logging.NewNop())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		recent     int
		percentage float64
		target     float64
		want       Status
	}{
		{3, 12, 10, StatusExcess},
		{3, 11.9, 10, StatusGood},
		{3, 9, 10, StatusGood},
		{3, 8.9, 10, StatusLow},
		{3, 7, 10, StatusLow},
		{3, 6.9, 10, StatusCritical},
		{0, 0, 10, StatusCritical},
		{0, 0, 0, StatusGood},
		{1, 5, 0, StatusExcess},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.recent, c.percentage, c.target), "%v%% of %v%%", c.percentage, c.target)
	}
}

func TestGetRecencyStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.UpsertCategory(ctx, phrases.Category{Name: "Music", Quota: 100, TargetRecentPercentage: phrases.Percent(15)}))
	require.NoError(t, store.UpsertCategory(ctx, phrases.Category{Name: "Sports", Quota: 100}))

	var batch []phrases.Phrase
	for i := 0; i < 20; i++ {
		batch = append(batch, scored(fmt.Sprintf("Song %d", i), "Music", 50, i < 3))
	}
	for i := 0; i < 10; i++ {
		batch = append(batch, scored(fmt.Sprintf("Team %d", i), "Sports", 50, false))
	}
	require.NoError(t, store.InsertPhrases(ctx, batch))

	tracker := newTracker(store)
	stats, err := tracker.GetRecencyStats(ctx, "")
	require.NoError(t, err)
	require.Len(t, stats.Categories, 2)
	assert.Equal(t, 30, stats.Total)
	assert.Equal(t, 3, stats.Recent)
	assert.Equal(t, 10.0, stats.Percentage)

	music := stats.Categories[0]
	assert.Equal(t, "Music", music.Category)
	assert.Equal(t, 15.0, music.Percentage)
	assert.Equal(t, 15.0, music.Target)
	assert.Equal(t, StatusGood, music.Status)

	sports := stats.Categories[1]
	assert.Equal(t, 10.0, sports.Target, "unset target uses the global default")
	assert.Equal(t, StatusCritical, sports.Status)

	one, err := tracker.GetRecencyStats(ctx, "Sports")
	require.NoError(t, err)
	require.Len(t, one.Categories, 1)
	assert.Equal(t, 10, one.Total)
}

func TestDetectRecentPhrases(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "TikTok Dance", Category: "Everything"},
		{Text: "Netflix and Chill", Category: "Movies & TV"},
		{Text: "Rainy Day", Category: "Everything"},
		{Text: "Pizza Party", Category: "Food & Drink"},
	}))
	tracker := newTracker(store)

	det, err := tracker.DetectRecentPhrases(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 4, det.Scanned)
	require.Len(t, det.Candidates, 2)
	assert.Zero(t, det.Marked)

	recent := true
	marked, err := store.CountPhrases(ctx, phrases.Query{Recent: &recent})
	require.NoError(t, err)
	assert.Zero(t, marked, "dry run changes nothing")

	det, err = tracker.DetectRecentPhrases(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, det.Marked)

	marked, err = store.CountPhrases(ctx, phrases.Query{Recent: &recent})
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	det, err = tracker.DetectRecentPhrases(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, det.Scanned)
	assert.Empty(t, det.Candidates)
}

func TestBulkMarkRecencyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{{Text: "Zoom Call", Category: "Everything"}}))
	rows, err := store.ListPhrases(ctx, phrases.Query{})
	require.NoError(t, err)
	tracker := newTracker(store)

	_, err = tracker.BulkMarkRecency(ctx, []uuid.UUID{rows[0].ID, uuid.New()}, true)
	assert.ErrorIs(t, err, phrases.ErrNotFound)

	rows, err = store.ListPhrases(ctx, phrases.Query{})
	require.NoError(t, err)
	assert.False(t, rows[0].Recent)

	n, err := tracker.BulkMarkRecency(ctx, []uuid.UUID{rows[0].ID}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetRecencyRecommendations(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.UpsertCategory(ctx, phrases.Category{Name: "Music", Quota: 100, TargetRecentPercentage: phrases.Percent(15)}))
	require.NoError(t, store.UpsertCategory(ctx, phrases.Category{Name: "Sports", Quota: 100}))

	var batch []phrases.Phrase
	for i := 0; i < 10; i++ {
		batch = append(batch, scored(fmt.Sprintf("Team %d", i), "Sports", i*10, false))
		batch = append(batch, scored(fmt.Sprintf("Song %d", i), "Music", i*10, i < 5))
	}
	require.NoError(t, store.InsertPhrases(ctx, batch))

	recs, err := newTracker(store).GetRecencyRecommendations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	music := recs[0]
	assert.Equal(t, "Music", music.Category)
	assert.Equal(t, StatusExcess, music.Status)
	assert.Equal(t, ActionDemote, music.Action)
	assert.Equal(t, 4, music.Needed)
	require.Len(t, music.Candidates, 4)
	assert.Equal(t, "Song 0", music.Candidates[0].Text, "lowest score demoted first")
	for _, p := range music.Candidates {
		assert.True(t, p.Recent)
	}

	sports := recs[1]
	assert.Equal(t, StatusCritical, sports.Status)
	assert.Equal(t, ActionPromote, sports.Action)
	assert.Equal(t, 1, sports.Needed)
	require.Len(t, sports.Candidates, 1)
	assert.Equal(t, "Team 9", sports.Candidates[0].Text, "highest score promoted first")
}
