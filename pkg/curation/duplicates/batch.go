package duplicates

import (
	"context"

	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// Item is one candidate in a batch check
type Item struct {
	Phrase   string `json:"phrase"`
	Category string `json:"category"`
}

// ItemResult pairs a candidate with its decision
type ItemResult struct {
	Index    int       `json:"index"`
	Item     Item      `json:"item"`
	Decision *Decision `json:"decision"`
}

// BatchSummary aggregates decisions by outcome
type BatchSummary struct {
	Total    int                    `json:"total"`
	Approved int                    `json:"approved"`
	Rejected int                    `json:"rejected"`
	ByReason map[phrases.Reason]int `json:"byReason"`
}

// BatchResult holds per-item decisions in input order
type BatchResult struct {
	Results []ItemResult `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// Approved returns the items that passed every check
func (r *BatchResult) Approved() []ItemResult {
	out := make([]ItemResult, 0, r.Summary.Approved)
	for _, res := range r.Results {
		if res.Decision.CanAdd {
			out = append(out, res)
		}
	}
	return out
}

// workingSet tracks candidates approved earlier in the same batch so that
// candidates which are not yet persisted still see each other.
type workingSet struct {
	phrases    map[string]map[string]string
	firstWords map[string][]string
}

func newWorkingSet() *workingSet {
	return &workingSet{
		phrases:    make(map[string]map[string]string),
		firstWords: make(map[string][]string),
	}
}

func groupKey(category, firstWord string) string {
	return category + "\x00" + firstWord
}

func (w *workingSet) lookup(category, normalized string) (string, bool) {
	prior, ok := w.phrases[category][normalize.Key(normalized)]
	return prior, ok
}

func (w *workingSet) firstWordGroup(category, firstWord string) []string {
	return w.firstWords[groupKey(category, firstWord)]
}

func (w *workingSet) add(category, normalized, firstWord string) {
	if w.phrases[category] == nil {
		w.phrases[category] = make(map[string]string)
	}
	w.phrases[category][normalize.Key(normalized)] = normalized
	k := groupKey(category, firstWord)
	w.firstWords[k] = append(w.firstWords[k], normalized)
}

// BatchCheckDuplicates checks every item in order. A rejection never stops
// later items from being checked. Approved candidates join a working set, so
// a later in-batch duplicate is rejected and approved candidates count
// toward the first-word cap.
func (d *Detector) BatchCheckDuplicates(ctx context.Context, items []Item) (*BatchResult, error) {
	result := &BatchResult{
		Results: make([]ItemResult, 0, len(items)),
		Summary: BatchSummary{
			Total:    len(items),
			ByReason: make(map[phrases.Reason]int),
		},
	}

	batch := newWorkingSet()
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decision, err := d.check(ctx, item.Phrase, item.Category, batch)
		if err != nil {
			return nil, err
		}

		result.Results = append(result.Results, ItemResult{Index: i, Item: item, Decision: decision})
		result.Summary.ByReason[decision.Reason]++
		if decision.CanAdd {
			result.Summary.Approved++
		} else {
			result.Summary.Rejected++
		}
	}

	d.logger.Info("Batch duplicate check complete", map[string]interface{}{
		"total":    result.Summary.Total,
		"approved": result.Summary.Approved,
		"rejected": result.Summary.Rejected,
	})
	return result, nil
}
