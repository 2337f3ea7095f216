package scoring

import (
	"context"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/workers"
)

// Item is one phrase to score in a batch
type Item struct {
	Phrase   string `json:"phrase"`
	Category string `json:"category"`
	Source   string `json:"source,omitempty"`
}

// BatchOptions apply to every item of a batch. Item.Source overrides
// Options.Source when set.
type BatchOptions struct {
	Options
	// OnResult is called once per item as it completes, possibly concurrently
	OnResult func(index int, result *Result)
}

// ScoreBatch scores items in groups of the configured batch size, pausing
// between groups. An item whose scoring fails gets a local-only score with
// the failure recorded under "batch". Results are in input order. The error
// is non-nil only when ctx ended before every item was scored.
func (s *Scorer) ScoreBatch(ctx context.Context, items []Item, opts BatchOptions) ([]*Result, error) {
	results := make([]*Result, len(items))
	pool := workers.NewBatchPool(s.cfg.BatchSize, s.cfg.BatchDelay)

	errs := pool.Run(ctx, len(items), func(ctx context.Context, i int) error {
		itemOpts := opts.Options
		if items[i].Source != "" {
			itemOpts.Source = items[i].Source
		}
		r, err := s.ScorePhrase(ctx, items[i].Phrase, items[i].Category, itemOpts)
		if err != nil {
			return err
		}
		results[i] = r
		if opts.OnResult != nil {
			opts.OnResult(i, r)
		}
		return nil
	})

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		source := opts.Source
		if items[i].Source != "" {
			source = items[i].Source
		}
		r := s.LocalOnly(items[i].Phrase, items[i].Category, source)
		r.Breakdown.Errors["batch"] = err.Error()
		results[i] = r
		if opts.OnResult != nil && ctx.Err() == nil {
			opts.OnResult(i, r)
		}
	}

	if failed > 0 {
		s.logger.Warn("Some phrases fell back to local scoring", map[string]interface{}{
			"failed": failed,
			"total":  len(items),
		})
	}
	return results, ctx.Err()
}
