package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/storage/memory"
)

func seeded(t *testing.T) (*Index, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	high, low := 85, 35
	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "Star Wars", Category: "Movies & TV", FirstWord: "star", Score: &high},
		{Text: "Star Trek", Category: "Movies & TV", FirstWord: "star", Score: &low},
		{Text: "Shooting Star", Category: "Everything", FirstWord: "shooting"},
		{Text: "Tiktok Dance", Category: "Music", FirstWord: "tiktok", Recent: true},
	}))

	idx, err := Open("", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	n, err := idx.Rebuild(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return idx, store
}

func TestSearchText(t *testing.T) {
	idx, _ := seeded(t)

	res, err := idx.Search(context.Background(), Request{Text: "star"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Equal(t, 2, res.Categories["Movies & TV"])
	assert.Equal(t, 1, res.Categories["Everything"])
}

func TestSearchFilters(t *testing.T) {
	idx, _ := seeded(t)
	ctx := context.Background()

	res, err := idx.Search(ctx, Request{Text: "star", Category: "Movies & TV"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)

	lo := 50
	res, err = idx.Search(ctx, Request{Text: "star", MinScore: &lo})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Star Wars", res.Hits[0].Phrase)
	require.NotNil(t, res.Hits[0].Score)
	assert.Equal(t, 85, *res.Hits[0].Score)

	recent := true
	res, err = idx.Search(ctx, Request{Recent: &recent})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Tiktok Dance", res.Hits[0].Phrase)
	assert.True(t, res.Hits[0].Recent)
}

func TestSimilarFindsTypos(t *testing.T) {
	idx, _ := seeded(t)

	hits, err := idx.Similar(context.Background(), "Star Warz", "Movies & TV", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Star Wars", hits[0].Phrase)
}

func TestReindexReplacesDocuments(t *testing.T) {
	idx, store := seeded(t)
	ctx := context.Background()

	_, err := idx.Rebuild(ctx, store)
	require.NoError(t, err)
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "search.bleve")

	idx, err := Open(path, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = Open(path, logging.NewNop())
	require.NoError(t, err)
	defer idx.Close()
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}
