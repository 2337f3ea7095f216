// Package duplicates is the authoritative gatekeeper for new phrases: it
// normalizes, looks for exact and case-variant duplicates, and enforces the
// first-word diversity cap per category.
package duplicates

import (
	"context"
	"fmt"

	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// DefaultFirstWordLimit caps phrases sharing a first word per category
const DefaultFirstWordLimit = 5

// Store is the read side of the phrase store the detector consults
type Store interface {
	FindExact(ctx context.Context, text string) ([]phrases.Phrase, error)
	ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error)
}

// Prefilter answers whether a phrase might already exist. A false answer only
// lets the detector skip the case-variant scan of the first-word group; the
// exact lookup always runs.
type Prefilter interface {
	Check(ctx context.Context, phrase, category string) (bool, error)
}

// staleMarker is implemented by prefilters that can be told their view of
// a category is out of date
type staleMarker interface {
	MarkStale(category string)
}

// Options configures the detector
type Options struct {
	FirstWordLimit int
	Normalizer     normalize.Options
}

// Details carries the evidence behind a decision
type Details struct {
	Phrase             string   `json:"phrase"`
	Category           string   `json:"category"`
	NormalizedPhrase   string   `json:"normalizedPhrase,omitempty"`
	FirstWord          string   `json:"firstWord,omitempty"`
	Errors             []string `json:"errors,omitempty"`
	Existing           []string `json:"existing,omitempty"`
	ExistingCategories []string `json:"existingCategories,omitempty"`
	Count              int      `json:"count,omitempty"`
	Limit              int      `json:"limit,omitempty"`
	InBatch            bool     `json:"inBatch,omitempty"`
	PrefilterSkipped   bool     `json:"prefilterSkipped,omitempty"`
}

// Decision is the verdict for one candidate
type Decision struct {
	CanAdd  bool           `json:"canAdd"`
	Reason  phrases.Reason `json:"reason"`
	Message string         `json:"message"`
	Details Details        `json:"details"`
}

// Detector checks candidates against the phrase store
type Detector struct {
	store      Store
	prefilter  Prefilter
	normalizer *normalize.Normalizer
	limit      int
	logger     *logging.Logger
}

// NewDetector creates a detector. prefilter may be nil.
func NewDetector(store Store, prefilter Prefilter, opts Options, logger *logging.Logger) *Detector {
	limit := opts.FirstWordLimit
	if limit <= 0 {
		limit = DefaultFirstWordLimit
	}
	return &Detector{
		store:      store,
		prefilter:  prefilter,
		normalizer: normalize.New(opts.Normalizer),
		limit:      limit,
		logger:     logger.WithComponent("duplicates"),
	}
}

// FirstWordLimit returns the configured diversity cap
func (d *Detector) FirstWordLimit() int {
	return d.limit
}

// CheckDuplicate decides whether raw may be added to category
func (d *Detector) CheckDuplicate(ctx context.Context, raw, category string) (*Decision, error) {
	return d.check(ctx, raw, category, nil)
}

func (d *Detector) check(ctx context.Context, raw, category string, batch *workingSet) (*Decision, error) {
	details := Details{Phrase: raw, Category: category}

	result := d.normalizer.Normalize(raw)
	if !result.IsValid {
		details.NormalizedPhrase = result.Normalized
		details.Errors = result.Errors
		return d.reject(phrases.ReasonInvalidPhrase, "phrase failed normalization", details), nil
	}
	normalized := result.Normalized
	firstWord := normalize.ExtractFirstWord(normalized)
	details.NormalizedPhrase = normalized
	details.FirstWord = firstWord

	definitelyNew := false
	if d.prefilter != nil {
		maybe, err := d.prefilter.Check(ctx, normalized, category)
		if err != nil {
			d.logger.Warn("Prefilter unavailable, falling back to store lookup", map[string]interface{}{
				"category": category,
				"error":    err,
			})
		} else {
			definitelyNew = !maybe
		}
	}
	details.PrefilterSkipped = definitelyNew

	// The exact lookup is indexed and always runs. A filter restored from
	// a snapshot may describe different content, so it never approves.
	exact, err := d.store.FindExact(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up exact duplicates: %w", err)
	}
	for _, p := range exact {
		if p.Category == category {
			if definitelyNew {
				d.logger.Warn("Bloom filter missed a stored phrase, marking it stale", map[string]interface{}{
					"phrase":   normalized,
					"category": category,
				})
				if s, ok := d.prefilter.(staleMarker); ok {
					s.MarkStale(category)
				}
			}
			details.PrefilterSkipped = false
			details.Existing = []string{p.Text}
			return d.reject(phrases.ReasonExactDuplicate,
				fmt.Sprintf("%q already exists in %s", normalized, category), details), nil
		}
		details.ExistingCategories = append(details.ExistingCategories, p.Category)
	}

	if batch != nil {
		if prior, ok := batch.lookup(category, normalized); ok {
			details.Existing = []string{prior}
			details.InBatch = true
			return d.reject(phrases.ReasonExactDuplicate,
				fmt.Sprintf("%q duplicates an earlier candidate in this batch", normalized), details), nil
		}
	}

	group, err := d.store.ListPhrases(ctx, phrases.Query{Category: category, FirstWord: firstWord})
	if err != nil {
		return nil, fmt.Errorf("failed to list first-word group: %w", err)
	}

	offending := make([]string, 0, len(group))
	for _, p := range group {
		offending = append(offending, p.Text)
	}
	if batch != nil {
		offending = append(offending, batch.firstWordGroup(category, firstWord)...)
	}
	if len(offending) >= d.limit {
		details.Existing = offending
		details.Count = len(offending)
		details.Limit = d.limit
		return d.reject(phrases.ReasonFirstWordLimit,
			fmt.Sprintf("%d phrases in %s already start with %q (limit %d)", len(offending), category, firstWord, d.limit),
			details), nil
	}

	if !definitelyNew {
		key := normalize.Key(normalized)
		for _, p := range group {
			if p.Text == normalized {
				continue
			}
			if normalize.Key(d.normalizer.Normalize(p.Text).Normalized) == key {
				details.Existing = []string{p.Text}
				return d.reject(phrases.ReasonSimilarPhrase,
					fmt.Sprintf("%q is a variant of existing %q", normalized, p.Text), details), nil
			}
		}
	}

	if batch != nil {
		batch.add(category, normalized, firstWord)
	}
	return &Decision{
		CanAdd:  true,
		Reason:  phrases.ReasonApproved,
		Message: "phrase can be added",
		Details: details,
	}, nil
}

func (d *Detector) reject(reason phrases.Reason, message string, details Details) *Decision {
	d.logger.Debug("Rejected candidate", map[string]interface{}{
		"phrase":   details.Phrase,
		"category": details.Category,
		"reason":   string(reason),
	})
	return &Decision{
		CanAdd:  false,
		Reason:  reason,
		Message: message,
		Details: details,
	}
}
