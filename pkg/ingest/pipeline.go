// Package ingest turns candidate phrases into stored phrases: duplicate
// checks, quota enforcement, optional quality scoring and a single
// transactional insert per run.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wordsonphone/phrasecurator/pkg/curation/bloom"
	"github.com/wordsonphone/phrasecurator/pkg/curation/duplicates"
	"github.com/wordsonphone/phrasecurator/pkg/curation/quota"
	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// MaxListedRejections is how many rejections Report.Lines spells out before
// collapsing the rest into a count.
const MaxListedRejections = 20

// Inserter is the write side of the phrase store
type Inserter interface {
	InsertPhrases(ctx context.Context, batch []phrases.Phrase) error
}

// Scorer scores candidates that passed the duplicate and quota gates
type Scorer interface {
	ScoreBatch(ctx context.Context, items []scoring.Item, opts scoring.BatchOptions) ([]*scoring.Result, error)
	Thresholds() scoring.Thresholds
}

// Options controls one import run
type Options struct {
	// Score runs the quality scorer and rejects candidates below MinScore
	Score bool
	// MinScore defaults to the scorer's review threshold
	MinScore     int
	ScoreOptions scoring.Options
	// Force admits candidates into full categories
	Force  bool
	DryRun bool
	// OnScored is called serially as scoring results arrive
	OnScored func(done int)
}

// Rejection records why a candidate was not added
type Rejection struct {
	Phrase   string         `json:"phrase"`
	Category string         `json:"category"`
	Reason   phrases.Reason `json:"reason"`
	Message  string         `json:"message"`
}

// Report summarizes an import run
type Report struct {
	Total    int                    `json:"total"`
	Added    int                    `json:"added"`
	Skipped  int                    `json:"skipped"`
	Errors   []string               `json:"errors,omitempty"`
	ByReason map[phrases.Reason]int `json:"byReason"`
	Rejected []Rejection            `json:"rejected,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Phrases  []phrases.Phrase       `json:"phrases,omitempty"`
	DryRun   bool                   `json:"dryRun"`
}

func (r *Report) reject(c Candidate, reason phrases.Reason, message string) {
	r.Skipped++
	r.ByReason[reason]++
	r.Rejected = append(r.Rejected, Rejection{
		Phrase:   c.Phrase,
		Category: c.Category,
		Reason:   reason,
		Message:  message,
	})
}

// Lines renders the report for terminal output. Rejections past
// MaxListedRejections are summarized by reason.
func (r *Report) Lines() []string {
	verb := "Added"
	if r.DryRun {
		verb = "Would add"
	}
	lines := []string{fmt.Sprintf("%s %d of %d phrases (%d skipped, %d errors)", verb, r.Added, r.Total, r.Skipped, len(r.Errors))}

	for i, rej := range r.Rejected {
		if i == MaxListedRejections {
			break
		}
		lines = append(lines, fmt.Sprintf("  - %s [%s]: %s (%s)", rej.Phrase, rej.Category, rej.Reason, rej.Message))
	}
	if extra := len(r.Rejected) - MaxListedRejections; extra > 0 {
		reasons := make([]string, 0, len(r.ByReason))
		for reason, n := range r.ByReason {
			if reason == phrases.ReasonApproved {
				continue
			}
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
		}
		sort.Strings(reasons)
		lines = append(lines, fmt.Sprintf("  ... and %d more rejections (%s)", extra, strings.Join(reasons, ", ")))
	}
	for _, w := range r.Warnings {
		lines = append(lines, "  warning: "+w)
	}
	for _, e := range r.Errors {
		lines = append(lines, "  error: "+e)
	}
	return lines
}

// Pipeline runs candidates through every curation gate
type Pipeline struct {
	store    Inserter
	detector *duplicates.Detector
	quotas   *quota.Tracker
	scorer   Scorer
	filters  *bloom.Filters
	logger   *logging.Logger
}

// NewPipeline wires the gates together. quotas, scorer and filters may be nil.
func NewPipeline(store Inserter, detector *duplicates.Detector, quotas *quota.Tracker, scorer Scorer, filters *bloom.Filters, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		detector: detector,
		quotas:   quotas,
		scorer:   scorer,
		filters:  filters,
		logger:   logger.WithComponent("ingest"),
	}
}

type accepted struct {
	candidate Candidate
	phrase    phrases.Phrase
}

// Import checks every candidate and inserts the approved ones in one
// transaction. Rejections never stop the run; a storage failure aborts it
// with nothing inserted.
func (p *Pipeline) Import(ctx context.Context, candidates []Candidate, opts Options) (*Report, error) {
	report := &Report{
		Total:    len(candidates),
		ByReason: make(map[phrases.Reason]int),
		DryRun:   opts.DryRun,
	}
	if len(candidates) == 0 {
		return report, nil
	}

	items := make([]duplicates.Item, len(candidates))
	for i, c := range candidates {
		items[i] = duplicates.Item{Phrase: c.Phrase, Category: c.Category}
	}
	checked, err := p.detector.BatchCheckDuplicates(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}

	var passed []accepted
	for _, res := range checked.Results {
		c := candidates[res.Index]
		if !res.Decision.CanAdd {
			report.reject(c, res.Decision.Reason, res.Decision.Message)
			continue
		}
		passed = append(passed, accepted{candidate: c, phrase: newPhrase(c, res.Decision.Details)})
	}

	passed, err = p.applyQuotas(ctx, passed, opts, report)
	if err != nil {
		return nil, err
	}

	if opts.Score && p.scorer != nil && len(passed) > 0 {
		passed, err = p.applyScores(ctx, passed, opts, report)
		if err != nil {
			return nil, err
		}
	}

	batch := make([]phrases.Phrase, len(passed))
	for i, a := range passed {
		batch[i] = a.phrase
	}

	if !opts.DryRun && len(batch) > 0 {
		if err := p.store.InsertPhrases(ctx, batch); err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, fmt.Errorf("failed to insert phrases: %w", err)
		}
		if p.filters != nil {
			for _, ph := range batch {
				p.filters.AddPhrase(ph.Text, ph.Category)
			}
		}
	}
	report.Added = len(batch)
	report.Phrases = batch
	report.ByReason[phrases.ReasonApproved] = len(batch)

	p.logger.Info("Import complete", map[string]interface{}{
		"total":   report.Total,
		"added":   report.Added,
		"skipped": report.Skipped,
		"dry_run": opts.DryRun,
	})
	return report, nil
}

func newPhrase(c Candidate, d duplicates.Details) phrases.Phrase {
	ph := phrases.Phrase{
		ID:        uuid.New(),
		Text:      d.NormalizedPhrase,
		Category:  c.Category,
		FirstWord: d.FirstWord,
	}
	if c.SourceProvider != "" {
		provider := c.SourceProvider
		ph.SourceProvider = &provider
	}
	if c.ModelID != "" {
		model := c.ModelID
		ph.ModelID = &model
	}
	return ph
}

// applyQuotas admits candidates in input order while their category has
// room, counting earlier admissions from the same run.
func (p *Pipeline) applyQuotas(ctx context.Context, in []accepted, opts Options, report *Report) ([]accepted, error) {
	if p.quotas == nil {
		return in, nil
	}

	statuses := make(map[string]quota.CategoryStatus)
	pending := make(map[string]int)
	warned := make(map[string]bool)
	out := in[:0]

	for _, a := range in {
		category := a.candidate.Category
		status, ok := statuses[category]
		if !ok {
			s, err := p.quotas.GetCategoryStatus(ctx, category)
			if err != nil {
				return nil, fmt.Errorf("failed to read quota for %q: %w", category, err)
			}
			status = *s
			statuses[category] = status
		}

		d := p.quotas.Evaluate(status, pending[category])
		if !d.CanAdd && !opts.Force {
			report.reject(a.candidate, phrases.ReasonQuotaExceeded, d.Message)
			continue
		}
		if !d.CanAdd && !warned[category] {
			warned[category] = true
			report.Warnings = append(report.Warnings, fmt.Sprintf("forced past quota: %s", d.Message))
		} else if d.Warning && !warned[category] {
			warned[category] = true
			report.Warnings = append(report.Warnings, d.Message)
		}

		pending[category]++
		out = append(out, a)
	}
	return out, nil
}

func (p *Pipeline) applyScores(ctx context.Context, in []accepted, opts Options, report *Report) ([]accepted, error) {
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = p.scorer.Thresholds().Review
	}

	items := make([]scoring.Item, len(in))
	for i, a := range in {
		items[i] = scoring.Item{Phrase: a.phrase.Text, Category: a.phrase.Category, Source: a.candidate.SourceProvider}
	}

	var mu sync.Mutex
	done := 0
	results, err := p.scorer.ScoreBatch(ctx, items, scoring.BatchOptions{
		Options: opts.ScoreOptions,
		OnResult: func(int, *scoring.Result) {
			mu.Lock()
			defer mu.Unlock()
			done++
			if opts.OnScored != nil {
				opts.OnScored(done)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	out := in[:0]
	for i, a := range in {
		r := results[i]
		if r == nil {
			continue
		}
		if r.TotalScore < minScore {
			report.reject(a.candidate, phrases.ReasonLowScore,
				fmt.Sprintf("scored %d (%s), below %d", r.TotalScore, r.Band, minScore))
			continue
		}
		score := r.TotalScore
		a.phrase.Score = &score
		out = append(out, a)
	}
	return out, nil
}
