package scoring

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCounts = `phrase,count
star,10
wars,10
Star Wars,5
the,50
cat,25
the cat,1
blue moon,2
,7
short
`

func TestNgramPMI(t *testing.T) {
	counts, err := LoadNgramCounts(strings.NewReader(sampleCounts))
	require.NoError(t, err)
	assert.Equal(t, 7, counts.Len())

	c, ok := counts.PMI("star   wars")
	require.True(t, ok)
	assert.Equal(t, 5, c.Count)
	// (5/103) / (10/103)^2
	assert.InDelta(t, math.Log2(5.15), c.PMI, 1e-9)

	c, ok = counts.PMI("The Cat")
	require.True(t, ok)
	assert.Negative(t, c.PMI, "a pair seen less often than chance")

	_, ok = counts.PMI("star")
	assert.False(t, ok, "single words have no cohesion")
	_, ok = counts.PMI("death star")
	assert.False(t, ok)
}

func TestNgramPMIAllOrdersByCohesion(t *testing.T) {
	counts, err := LoadNgramCounts(strings.NewReader(sampleCounts))
	require.NoError(t, err)

	all := counts.All()
	require.Len(t, all, 3)
	// words without unigram rows fall back to a tiny probability
	assert.Equal(t, "blue moon", all[0].Phrase)
	assert.Equal(t, "star wars", all[1].Phrase)
	assert.Equal(t, "the cat", all[2].Phrase)
}

func TestNgramCountsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.csv")
	require.NoError(t, os.WriteFile(path, []byte("phrase,count\n"), 0644))

	counts, err := LoadNgramCountsFile(path)
	require.NoError(t, err)
	assert.Empty(t, counts.All())
	_, ok := counts.PMI("star wars")
	assert.False(t, ok)

	_, err = LoadNgramCountsFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
