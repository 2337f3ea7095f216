package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

func TestInsertRejectsCaseInsensitiveDuplicates(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "Taylor Swift", Category: "Music", FirstWord: "taylor"},
		{Text: "Taylor Swift", Category: "Famous People", FirstWord: "taylor"},
	}))

	err := store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "Lady Gaga", Category: "Music", FirstWord: "lady"},
		{Text: "TAYLOR SWIFT", Category: "Music", FirstWord: "taylor"},
	})
	assert.ErrorIs(t, err, phrases.ErrDuplicatePhrase)

	count, err := store.CountPhrases(ctx, phrases.Query{Category: "Music"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed batch must not be partially applied")

	found, err := store.FindExact(ctx, "Taylor Swift")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, p := range found {
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.False(t, p.Added.IsZero())
	}
}

func TestSetRecencyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "Tiktok Dance", Category: "Everything", FirstWord: "tiktok"},
	}))
	list, _ := store.ListPhrases(ctx, phrases.Query{})
	id := list[0].ID

	_, err := store.SetRecency(ctx, []uuid.UUID{id, uuid.New()}, true)
	assert.ErrorIs(t, err, phrases.ErrNotFound)

	recent := true
	count, _ := store.CountPhrases(ctx, phrases.Query{Recent: &recent})
	assert.Zero(t, count)

	n, err := store.SetRecency(ctx, []uuid.UUID{id, id}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := store.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, phrases.CategoryCounts{Total: 1, Recent: 1}, counts["Everything"])
}

func TestSetQuotasValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.SeedDefaultCategories(ctx))

	err := store.SetQuotas(ctx, map[string]int{"Music": 10, "Sports": -1})
	assert.ErrorIs(t, err, phrases.ErrInvalidQuota)

	music, err := store.GetCategory(ctx, "Music")
	require.NoError(t, err)
	assert.Equal(t, 1000, music.Quota)

	require.NoError(t, store.SetQuotas(ctx, map[string]int{"Music": 10, "Board Games": 25}))
	music, _ = store.GetCategory(ctx, "Music")
	assert.Equal(t, 10, music.Quota)
	board, err := store.GetCategory(ctx, "Board Games")
	require.NoError(t, err)
	assert.Equal(t, 25, board.Quota)
	assert.Nil(t, board.TargetRecentPercentage)

	_, err = store.GetCategory(ctx, "Knitting")
	assert.ErrorIs(t, err, phrases.ErrNotFound)
}

func TestUpdateScores(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertPhrases(ctx, []phrases.Phrase{
		{Text: "Pizza Party", Category: "Food & Drink", FirstWord: "pizza"},
	}))
	list, _ := store.ListPhrases(ctx, phrases.Query{})

	require.NoError(t, store.UpdateScores(ctx, map[uuid.UUID]int{list[0].ID: 72}))

	min := 70
	scored, err := store.ListPhrases(ctx, phrases.Query{MinScore: &min})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 72, scored[0].ScoreOrZero())

	assert.ErrorIs(t, store.UpdateScores(ctx, map[uuid.UUID]int{uuid.New(): 1}), phrases.ErrNotFound)
}
