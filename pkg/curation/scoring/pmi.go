package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// unseenWordProbability stands in for words with no unigram row
const unseenWordProbability = 1e-12

// NgramCounts holds corpus frequencies read from a "phrase,count" file.
// Phrases are keyed lowercased with single spaces.
type NgramCounts struct {
	counts map[string]int
	total  int
}

// Cohesion is how much more often a multi-word phrase occurs than its
// words would by chance, as pointwise mutual information in bits
type Cohesion struct {
	Phrase string  `json:"phrase"`
	Count  int     `json:"count"`
	PMI    float64 `json:"pmi"`
}

func ngramKey(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// LoadNgramCounts reads CSV rows of phrase and count. The count is taken
// from the last column. Rows that are short or whose count does not parse,
// such as a header, are skipped.
func LoadNgramCounts(r io.Reader) (*NgramCounts, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	n := &NgramCounts{counts: make(map[string]int)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read n-gram counts: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(row[len(row)-1]))
		if err != nil {
			continue
		}
		key := ngramKey(row[0])
		if key == "" {
			continue
		}
		n.counts[key] = count
		n.total += count
	}
	return n, nil
}

// LoadNgramCountsFile reads an n-gram counts CSV file
func LoadNgramCountsFile(path string) (*NgramCounts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return LoadNgramCounts(f)
}

// Len is the number of distinct phrases read
func (n *NgramCounts) Len() int {
	return len(n.counts)
}

func (n *NgramCounts) probability(key string) float64 {
	if n.total == 0 {
		return 0
	}
	return float64(n.counts[key]) / float64(n.total)
}

// PMI returns the cohesion of a multi-word phrase. ok is false for single
// words and for phrases missing from the counts.
func (n *NgramCounts) PMI(phrase string) (Cohesion, bool) {
	key := ngramKey(phrase)
	words := strings.Split(key, " ")
	count, found := n.counts[key]
	if !found || len(words) < 2 || n.total == 0 {
		return Cohesion{Phrase: phrase}, false
	}

	denom := 1.0
	for _, w := range words {
		p := unseenWordProbability
		if _, seen := n.counts[w]; seen {
			p = n.probability(w)
		}
		denom *= p
	}

	c := Cohesion{Phrase: phrase, Count: count}
	if denom > 0 && count > 0 {
		c.PMI = math.Log2(n.probability(key) / denom)
	}
	return c, true
}

// All scores every multi-word phrase in the counts, most cohesive first
func (n *NgramCounts) All() []Cohesion {
	out := make([]Cohesion, 0, len(n.counts))
	for key := range n.counts {
		if c, ok := n.PMI(key); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PMI != out[j].PMI {
			return out[i].PMI > out[j].PMI
		}
		return out[i].Phrase < out[j].Phrase
	})
	return out
}
