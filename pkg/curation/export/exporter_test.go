package export

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/storage/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	var batch []phrases.Phrase
	for i := 0; i < 20; i++ {
		score := i * 5
		batch = append(batch, phrases.Phrase{
			Text:     fmt.Sprintf("Pizza Topping %d", i),
			Category: "Food & Drink",
			Score:    &score,
			Recent:   i%4 == 0,
		})
	}
	batch = append(batch,
		phrases.Phrase{Text: "Taylor Swift", Category: "Music"},
		phrases.Phrase{Text: "Lady Gaga", Category: "Music"},
	)
	require.NoError(t, store.InsertPhrases(context.Background(), batch))
	return store
}

func TestExportAllCategories(t *testing.T) {
	exp := NewExporter(seededStore(t), 0, logging.NewNop())

	out, err := exp.Export(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Food & Drink", out[0].Category)
	assert.Len(t, out[0].Phrases, 20)
	assert.Equal(t, "Music", out[1].Category)
	assert.ElementsMatch(t, []string{"Taylor Swift", "Lady Gaga"}, out[1].Phrases)
}

func TestExportFilters(t *testing.T) {
	exp := NewExporter(seededStore(t), 0, logging.NewNop())
	ctx := context.Background()

	recent := true
	out, err := exp.Export(ctx, Filter{Categories: []string{"Food & Drink"}, Recent: &recent})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Phrases, 5)

	lo, hi := 50, 70
	out, err = exp.Export(ctx, Filter{Categories: []string{"Food & Drink", "Music"}, MinScore: &lo, MaxScore: &hi})
	require.NoError(t, err)
	require.Len(t, out, 1, "unscored Music phrases are filtered out")
	assert.Equal(t, []string{"Pizza Topping 10", "Pizza Topping 11", "Pizza Topping 12", "Pizza Topping 13", "Pizza Topping 14"}, out[0].Phrases)

	out, err = exp.Export(ctx, Filter{Categories: []string{"Nope"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExportShuffleIsSeededAndTruncatesAfter(t *testing.T) {
	exp := NewExporter(seededStore(t), 0, logging.NewNop())
	ctx := context.Background()
	f := Filter{Categories: []string{"Food & Drink"}, Shuffle: true, Seed: 42, Limit: 5}

	a, err := exp.Export(ctx, f)
	require.NoError(t, err)
	b, err := exp.Export(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0].Phrases, 5)

	unshuffled, err := exp.Export(ctx, Filter{Categories: []string{"Food & Drink"}, Limit: 5})
	require.NoError(t, err)
	assert.NotEqual(t, unshuffled[0].Phrases, a[0].Phrases)
}

func TestShuffleIsPermutation(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e", "f"}
	shuffled := append([]string(nil), list...)
	Shuffle(shuffled, rand.New(rand.NewPCG(1, 2)))
	assert.ElementsMatch(t, list, shuffled)
}

func TestExportIntegrity(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.InsertPhrases(context.Background(), []phrases.Phrase{
		{Text: "Jaws", Category: "Movies & TV"},
		{Text: "Jaws", Category: "Famous Sharks"},
		{Text: "Star Wars", Category: "Movies & TV"},
	}))
	exp := NewExporter(store, 0, logging.NewNop())

	out, err := exp.Export(context.Background(), Filter{Categories: []string{"Movies & TV"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"Jaws", "Star Wars"}, out[0].Phrases)
	for _, p := range out[0].Phrases {
		assert.NotEmpty(t, p)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	single := filepath.Join(dir, "single.json")
	require.NoError(t, WriteFile(single, []GameCategory{{Category: "Music", Phrases: []string{"Taylor Swift"}}}))
	data, err := os.ReadFile(single)
	require.NoError(t, err)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, "Music", obj["category"])

	multi := filepath.Join(dir, "nested", "multi.json")
	require.NoError(t, WriteFile(multi, []GameCategory{
		{Category: "Music", Phrases: []string{"Taylor Swift"}},
		{Category: "Sports", Phrases: []string{"Super Bowl"}},
	}))
	raw, err := ReadFile(multi)
	require.NoError(t, err)
	v := ValidateGameFormat(raw)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.Categories)
	assert.Equal(t, 2, v.Phrases)
}
