package bloom

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/storage/memory"
)

func newFilters(t *testing.T, store *memory.Store) *Filters {
	t.Helper()
	return New(store, DefaultOptions(), logging.NewNop())
}

func insert(t *testing.T, store *memory.Store, category string, texts ...string) {
	t.Helper()
	batch := make([]phrases.Phrase, 0, len(texts))
	for _, text := range texts {
		batch = append(batch, phrases.Phrase{Text: text, Category: category})
	}
	require.NoError(t, store.InsertPhrases(context.Background(), batch))
}

func TestAddedPhraseAlwaysMightExist(t *testing.T) {
	filters := newFilters(t, memory.New())

	filters.AddPhrase("taylor swift", "Music")

	assert.True(t, filters.MightExist("taylor swift", "Music"))
	assert.True(t, filters.MightExist("Taylor Swift", "Music"), "keys are case-insensitive")
	assert.False(t, filters.MightExist("some never added phrase", "Music"))
}

func TestNoFalseNegativesAcrossGrowth(t *testing.T) {
	filters := newFilters(t, memory.New())

	// grow well past the initial capacity
	for i := 0; i < 500; i++ {
		filters.AddPhrase(fmt.Sprintf("phrase number %d", i), "Everything")
	}
	for i := 0; i < 500; i++ {
		assert.True(t, filters.MightExist(fmt.Sprintf("phrase number %d", i), "Everything"))
	}
	assert.True(t, filters.IsStale("Everything"))
}

func TestUnbuiltCategoryAnswersMaybe(t *testing.T) {
	filters := newFilters(t, memory.New())
	assert.True(t, filters.MightExist("anything at all", "Sports"))
}

func TestBuildFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	insert(t, store, "Music", "Taylor Swift", "Lady Gaga", "Bohemian Rhapsody")
	insert(t, store, "Sports", "Super Bowl")
	filters := newFilters(t, store)

	stats, err := filters.BuildCategoryFilter(ctx, "Music")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, uint(100), stats.Capacity)
	assert.Equal(t, uint(1000), stats.Bits)
	assert.Equal(t, uint(3), stats.HashFunctions)
	assert.Less(t, stats.EstimatedFPRate, 0.01)

	assert.True(t, filters.MightExist("lady gaga", "Music"))
	assert.False(t, filters.MightExist("Super Bowl", "Music"))
}

func TestCheckBuildsAndReplaysPendingKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	insert(t, store, "Food & Drink", "Pizza Party")
	filters := newFilters(t, store)

	// added before any build and not yet persisted
	filters.AddPhrase("Pizza Oven", "Food & Drink")

	maybe, err := filters.Check(ctx, "Pizza Party", "Food & Drink")
	require.NoError(t, err)
	assert.True(t, maybe)

	assert.True(t, filters.MightExist("Pizza Oven", "Food & Drink"))
	assert.False(t, filters.IsStale("Food & Drink"))
}

func TestMarkStaleTriggersRebuild(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	filters := newFilters(t, store)

	_, err := filters.BuildCategoryFilter(ctx, "Places")
	require.NoError(t, err)
	insert(t, store, "Places", "Eiffel Tower")

	assert.False(t, filters.MightExist("Eiffel Tower", "Places"))

	filters.MarkStale("Places")
	maybe, err := filters.Check(ctx, "Eiffel Tower", "Places")
	require.NoError(t, err)
	assert.True(t, maybe)
}

func TestRefreshStaleRebuildsGrownCategories(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	filters := newFilters(t, store)
	_, err := filters.BuildCategoryFilter(ctx, "Everything")
	require.NoError(t, err)

	texts := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		texts = append(texts, fmt.Sprintf("Phrase %d", i))
	}
	insert(t, store, "Everything", texts...)

	rebuilt, err := filters.RefreshStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Everything"}, rebuilt)

	stats := filters.Stats("Everything")
	require.NotNil(t, stats)
	assert.Equal(t, 150, stats.Count)
	assert.Equal(t, uint(300), stats.Capacity)
}

func TestFilterCandidates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	insert(t, store, "Music", "Taylor Swift")
	filters := newFilters(t, store)

	result, err := filters.FilterCandidates(ctx, []Candidate{
		{Phrase: "taylor swift", Category: "Music"},
		{Phrase: "Completely New Song", Category: "Music"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.Total)
	require.Len(t, result.MaybeDuplicates, 1)
	assert.Equal(t, "taylor swift", result.MaybeDuplicates[0].Phrase)
	require.Len(t, result.Filtered, 1)
	assert.InDelta(t, 0.5, result.Stats.FilterRatio, 0.001)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	insert(t, store, "Music", "Taylor Swift")
	filters := newFilters(t, store)
	_, err := filters.BuildCategoryFilter(ctx, "Music")
	require.NoError(t, err)

	data, err := filters.Snapshot("Music")
	require.NoError(t, err)

	restored := newFilters(t, store)
	require.NoError(t, restored.Restore("Music", data))
	assert.True(t, restored.MightExist("Taylor Swift", "Music"))

	// the store moved on after the snapshot was taken
	insert(t, store, "Music", "Lady Gaga")
	maybe, err := restored.Check(ctx, "Lady Gaga", "Music")
	require.NoError(t, err)
	assert.True(t, maybe)

	_, err = newFilters(t, store).Snapshot("Music")
	assert.Error(t, err)
}
