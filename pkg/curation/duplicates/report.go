package duplicates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// FirstWordGroup is a (category, first word) group at or over the cap
type FirstWordGroup struct {
	Category  string   `json:"category"`
	FirstWord string   `json:"firstWord"`
	Count     int      `json:"count"`
	Limit     int      `json:"limit"`
	OverLimit bool     `json:"overLimit"`
	Phrases   []string `json:"phrases"`
}

// DuplicateGroup lists phrases in one category that share a canonical form
type DuplicateGroup struct {
	Category string   `json:"category"`
	Key      string   `json:"key"`
	Phrases  []string `json:"phrases"`
}

// Report is a read-only audit of the corpus
type Report struct {
	Category             string           `json:"category,omitempty"`
	TotalPhrases         int              `json:"totalPhrases"`
	TotalGroups          int              `json:"totalGroups"`
	FlaggedGroups        []FirstWordGroup `json:"flaggedGroups"`
	ExactDuplicates      []DuplicateGroup `json:"exactDuplicates"`
	CrossCategoryPhrases int              `json:"crossCategoryPhrases"`
	GeneratedAt          time.Time        `json:"generatedAt"`
}

// GenerateDuplicateReport groups phrases by first word and canonical form.
// An empty category audits every category.
func (d *Detector) GenerateDuplicateReport(ctx context.Context, category string) (*Report, error) {
	list, err := d.store.ListPhrases(ctx, phrases.Query{Category: category})
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}

	groups := make(map[string]*FirstWordGroup)
	canonical := make(map[string]*DuplicateGroup)
	categoriesByKey := make(map[string]map[string]bool)

	for _, p := range list {
		firstWord := p.FirstWord
		if firstWord == "" {
			firstWord = normalize.ExtractFirstWord(p.Text)
		}
		gk := groupKey(p.Category, firstWord)
		g, ok := groups[gk]
		if !ok {
			g = &FirstWordGroup{Category: p.Category, FirstWord: firstWord, Limit: d.limit}
			groups[gk] = g
		}
		g.Count++
		g.Phrases = append(g.Phrases, p.Text)

		key := normalize.Key(d.normalizer.Normalize(p.Text).Normalized)
		ck := p.Category + "\x00" + key
		dg, ok := canonical[ck]
		if !ok {
			dg = &DuplicateGroup{Category: p.Category, Key: key}
			canonical[ck] = dg
		}
		dg.Phrases = append(dg.Phrases, p.Text)

		if categoriesByKey[key] == nil {
			categoriesByKey[key] = make(map[string]bool)
		}
		categoriesByKey[key][p.Category] = true
	}

	report := &Report{
		Category:        category,
		TotalPhrases:    len(list),
		TotalGroups:     len(groups),
		FlaggedGroups:   []FirstWordGroup{},
		ExactDuplicates: []DuplicateGroup{},
		GeneratedAt:     time.Now().UTC(),
	}

	for _, g := range groups {
		if g.Count >= d.limit {
			g.OverLimit = g.Count > d.limit
			report.FlaggedGroups = append(report.FlaggedGroups, *g)
		}
	}
	for _, dg := range canonical {
		if len(dg.Phrases) > 1 {
			report.ExactDuplicates = append(report.ExactDuplicates, *dg)
		}
	}
	for _, cats := range categoriesByKey {
		if len(cats) > 1 {
			report.CrossCategoryPhrases++
		}
	}

	sort.Slice(report.FlaggedGroups, func(i, j int) bool {
		a, b := report.FlaggedGroups[i], report.FlaggedGroups[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.FirstWord < b.FirstWord
	})
	sort.Slice(report.ExactDuplicates, func(i, j int) bool {
		a, b := report.ExactDuplicates[i], report.ExactDuplicates[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Key < b.Key
	})

	return report, nil
}
