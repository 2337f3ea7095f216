package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCandidateList(t *testing.T) {
	got, err := LoadCandidates(strings.NewReader(`[
		{"phrase": "Taylor Swift", "category": "Music", "source_provider": "gemini", "model_id": "flash"},
		{"phrase": "Super Bowl"}
	]`), "Sports")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Phrase: "Taylor Swift", Category: "Music", SourceProvider: "gemini", ModelID: "flash"},
		{Phrase: "Super Bowl", Category: "Sports"},
	}, got)
}

func TestLoadCategoryObject(t *testing.T) {
	got, err := LoadCandidates(strings.NewReader(`{"category": "Food & Drink", "phrases": ["Pizza Party", "Hot Dog"]}`), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Food & Drink", got[1].Category)
	assert.Equal(t, "Hot Dog", got[1].Phrase)
}

func TestLoadMixedArray(t *testing.T) {
	got, err := LoadCandidates(strings.NewReader(`[
		{"category": "Music", "phrases": ["Lady Gaga"]},
		{"phrase": "Jaws", "category": "Movies & TV"}
	]`), "")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Phrase: "Lady Gaga", Category: "Music"},
		{Phrase: "Jaws", Category: "Movies & TV"},
	}, got)
}

func TestLoadCandidateErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"scalar":           `"Music"`,
		"broken":           `[{"phrase":`,
		"missing category": `[{"phrase": "Jaws"}]`,
		"non-object item":  `[3]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCandidates(strings.NewReader(input), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"category":"Places","phrases":["Eiffel Tower"]}`), 0644))

	got, err := LoadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{Phrase: "Eiffel Tower", Category: "Places"}}, got)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Error(t, err)
}
