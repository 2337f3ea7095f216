// Package recency keeps each category's share of recent phrases near its
// target percentage.
package recency

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/wordsonphone/phrasecurator/pkg/curation/keywords"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// Status grades a category's recent share against its target
type Status string

const (
	StatusGood     Status = "GOOD"
	StatusLow      Status = "LOW"
	StatusCritical Status = "CRITICAL"
	StatusExcess   Status = "EXCESS"
)

// Store is the subset of the phrase store the tracker needs
type Store interface {
	ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error)
	CountByCategory(ctx context.Context) (map[string]phrases.CategoryCounts, error)
	SetRecency(ctx context.Context, ids []uuid.UUID, recent bool) (int, error)
}

// Categories lists configured targets
type Categories interface {
	ListCategories(ctx context.Context) ([]phrases.Category, error)
}

// Options configure the tracker
type Options struct {
	DefaultTargetPercentage float64
	Keywords                []string
}

// CategoryStats describes one category's recent share
type CategoryStats struct {
	Category   string  `json:"category"`
	Total      int     `json:"total"`
	Recent     int     `json:"recent"`
	Percentage float64 `json:"percentage"`
	Target     float64 `json:"target"`
	Status     Status  `json:"status"`
}

// Stats is the corpus-wide view
type Stats struct {
	Categories []CategoryStats `json:"categories"`
	Total      int             `json:"total"`
	Recent     int             `json:"recent"`
	Percentage float64         `json:"percentage"`
}

// Classify grades a recent percentage against a target. A zero target is
// GOOD only while the category has no recent phrases.
func Classify(recent int, percentage, target float64) Status {
	if target <= 0 {
		if recent == 0 {
			return StatusGood
		}
		return StatusExcess
	}
	ratio := percentage / target
	switch {
	case ratio >= 1.2:
		return StatusExcess
	case ratio >= 0.9:
		return StatusGood
	case ratio >= 0.7:
		return StatusLow
	default:
		return StatusCritical
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

// Tracker computes recency stats and applies recency flags
type Tracker struct {
	store      Store
	categories Categories
	opts       Options
	matcher    *keywords.Matcher
	logger     *logging.Logger
}

// NewTracker creates a recency tracker
func NewTracker(store Store, categories Categories, opts Options, logger *logging.Logger) *Tracker {
	if opts.DefaultTargetPercentage < 0 {
		opts.DefaultTargetPercentage = 0
	}
	return &Tracker{
		store:      store,
		categories: categories,
		opts:       opts,
		matcher:    keywords.New(opts.Keywords),
		logger:     logger.WithComponent("recency"),
	}
}

func (t *Tracker) targets(ctx context.Context) (map[string]float64, error) {
	cats, err := t.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	targets := make(map[string]float64, len(cats))
	for _, c := range cats {
		if c.TargetRecentPercentage != nil {
			targets[c.Name] = *c.TargetRecentPercentage
		} else {
			targets[c.Name] = t.opts.DefaultTargetPercentage
		}
	}
	return targets, nil
}

// GetRecencyStats reports recent share per category. An empty category
// argument reports every category that has a target or phrases.
func (t *Tracker) GetRecencyStats(ctx context.Context, category string) (*Stats, error) {
	targets, err := t.targets(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := t.store.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count phrases: %w", err)
	}

	names := make(map[string]bool, len(targets)+len(counts))
	for name := range targets {
		names[name] = true
	}
	for name := range counts {
		names[name] = true
	}
	if category != "" {
		names = map[string]bool{category: true}
	}

	stats := &Stats{Categories: make([]CategoryStats, 0, len(names))}
	for name := range names {
		target, ok := targets[name]
		if !ok {
			target = t.opts.DefaultTargetPercentage
		}
		c := counts[name]
		cs := CategoryStats{
			Category:   name,
			Total:      c.Total,
			Recent:     c.Recent,
			Percentage: percent(c.Recent, c.Total),
			Target:     target,
		}
		cs.Status = Classify(cs.Recent, cs.Percentage, cs.Target)
		stats.Categories = append(stats.Categories, cs)
		stats.Total += c.Total
		stats.Recent += c.Recent
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		return stats.Categories[i].Category < stats.Categories[j].Category
	})
	stats.Percentage = percent(stats.Recent, stats.Total)
	return stats, nil
}

// Candidate is a phrase whose text matched recency keywords
type Candidate struct {
	ID       uuid.UUID `json:"id"`
	Phrase   string    `json:"phrase"`
	Category string    `json:"category"`
	Keywords []string  `json:"keywords"`
}

// Detection is the outcome of a keyword scan
type Detection struct {
	Scanned    int         `json:"scanned"`
	Candidates []Candidate `json:"candidates"`
	Marked     int         `json:"marked"`
	DryRun     bool        `json:"dryRun"`
}

// DetectRecentPhrases scans non-recent phrases for recency keywords. Unless
// dryRun is set the matches are marked recent in one transaction. Keyword
// matching is a heuristic and misses are expected.
func (t *Tracker) DetectRecentPhrases(ctx context.Context, dryRun bool) (*Detection, error) {
	notRecent := false
	rows, err := t.store.ListPhrases(ctx, phrases.Query{Recent: &notRecent})
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}

	det := &Detection{Scanned: len(rows), DryRun: dryRun, Candidates: []Candidate{}}
	ids := make([]uuid.UUID, 0)
	for _, p := range rows {
		if found := t.matcher.Matches(p.Text); len(found) > 0 {
			det.Candidates = append(det.Candidates, Candidate{
				ID:       p.ID,
				Phrase:   p.Text,
				Category: p.Category,
				Keywords: found,
			})
			ids = append(ids, p.ID)
		}
	}

	if dryRun || len(ids) == 0 {
		return det, nil
	}
	marked, err := t.BulkMarkRecency(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	det.Marked = marked
	return det, nil
}

// BulkMarkRecency sets the recent flag on every id, all or nothing
func (t *Tracker) BulkMarkRecency(ctx context.Context, ids []uuid.UUID, isRecent bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := t.store.SetRecency(ctx, ids, isRecent)
	if err != nil {
		return 0, fmt.Errorf("failed to mark recency: %w", err)
	}
	t.logger.Info("Recency updated", map[string]interface{}{
		"phrases": n,
		"recent":  isRecent,
	})
	return n, nil
}

// Recommendation actions
const (
	ActionPromote = "promote"
	ActionDemote  = "demote"
)

// Recommendation suggests phrases to flip for one unbalanced category.
// Nothing is applied.
type Recommendation struct {
	Category   string           `json:"category"`
	Status     Status           `json:"status"`
	Action     string           `json:"action"`
	Needed     int              `json:"needed"`
	Candidates []phrases.Phrase `json:"candidates"`
}

// GetRecencyRecommendations suggests, for LOW and CRITICAL categories, the
// highest scoring non-recent phrases to promote and, for EXCESS categories,
// the lowest scoring recent phrases to demote. At most limit candidates are
// returned per category.
func (t *Tracker) GetRecencyRecommendations(ctx context.Context, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	stats, err := t.GetRecencyStats(ctx, "")
	if err != nil {
		return nil, err
	}

	var recs []Recommendation
	for _, cs := range stats.Categories {
		if cs.Total == 0 {
			continue
		}

		var rec Recommendation
		var recent bool
		switch cs.Status {
		case StatusLow, StatusCritical:
			want := int(math.Ceil(cs.Target * float64(cs.Total) / 100))
			rec = Recommendation{Action: ActionPromote, Needed: want - cs.Recent}
		case StatusExcess:
			allowed := int(math.Floor(cs.Target * float64(cs.Total) / 100))
			rec = Recommendation{Action: ActionDemote, Needed: cs.Recent - allowed}
			recent = true
		default:
			continue
		}
		if rec.Needed <= 0 {
			continue
		}

		rows, err := t.store.ListPhrases(ctx, phrases.Query{Category: cs.Category, Recent: &recent})
		if err != nil {
			return nil, fmt.Errorf("failed to list phrases in %q: %w", cs.Category, err)
		}
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if recent {
				return rows[i].ScoreOrZero() < rows[j].ScoreOrZero()
			}
			return rows[i].ScoreOrZero() > rows[j].ScoreOrZero()
		})

		n := limit
		if rec.Needed < n {
			n = rec.Needed
		}
		if len(rows) < n {
			n = len(rows)
		}
		rec.Category = cs.Category
		rec.Status = cs.Status
		rec.Candidates = rows[:n]
		recs = append(recs, rec)
	}
	return recs, nil
}
