package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriState(t *testing.T) {
	v, err := triState("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = triState("YES")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = triState("no")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)

	_, err = triState("maybe")
	assert.Error(t, err)
}

func TestOptionalInt(t *testing.T) {
	assert.Nil(t, optionalInt(-1))
	require.NotNil(t, optionalInt(0))
	assert.Equal(t, 0, *optionalInt(0))
}

func TestReadPhraseList(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "phrases.txt")
	require.NoError(t, os.WriteFile(txt, []byte("# movies\nStar Wars\n\n  Jaws  \n"), 0644))
	list, err := readPhraseList(txt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Star Wars", "Jaws"}, list)

	js := filepath.Join(dir, "phrases.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"category":"Music","phrases":["Lady Gaga","Taylor Swift"]}`), 0644))
	list, err = readPhraseList(js)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lady Gaga", "Taylor Swift"}, list)

	_, err = readPhraseList(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
