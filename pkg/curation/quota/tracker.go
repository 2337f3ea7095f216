// Package quota enforces and reports per-category capacity ceilings.
package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// ReasonQuotaExceeded is reported when a category is full
const ReasonQuotaExceeded = "quota_exceeded"

// Status is the utilization band of a category
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusFull    Status = "FULL"
)

// Counter reports phrase counts per category
type Counter interface {
	CountByCategory(ctx context.Context) (map[string]phrases.CategoryCounts, error)
	CountPhrases(ctx context.Context, q phrases.Query) (int, error)
}

// Options configure the tracker
type Options struct {
	DefaultQuota     int
	WarningThreshold float64
}

// DefaultOptions returns quota 1000 and a warning at 80%
func DefaultOptions() Options {
	return Options{DefaultQuota: 1000, WarningThreshold: 0.8}
}

// CategoryStatus describes a category's capacity
type CategoryStatus struct {
	Category   string  `json:"category"`
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Available  int     `json:"available"`
	Percentage float64 `json:"percentage"`
	Status     Status  `json:"status"`
	CanAdd     bool    `json:"canAdd"`
}

func newStatus(category string, current, limit int, warning float64) CategoryStatus {
	s := CategoryStatus{Category: category, Current: current, Limit: limit}
	if limit > current {
		s.Available = limit - current
	}
	if limit > 0 {
		s.Percentage = math.Round(float64(current)/float64(limit)*10000) / 100
	} else {
		s.Percentage = 100
	}

	switch {
	case current >= limit:
		s.Status = StatusFull
	// Percentage is rounded for display; compare the exact ratio
	case float64(current)/float64(limit) >= warning:
		s.Status = StatusWarning
	default:
		s.Status = StatusOK
	}
	s.CanAdd = current < limit
	return s
}

// Decision is the answer to "may one more phrase be added?"
type Decision struct {
	CanAdd  bool           `json:"canAdd"`
	Reason  string         `json:"reason,omitempty"`
	Warning bool           `json:"warning,omitempty"`
	Message string         `json:"message,omitempty"`
	Status  CategoryStatus `json:"status"`
}

// Tracker reads quotas from the category store and counts from the phrase
// store.
type Tracker struct {
	categories phrases.CategoryStore
	counter    Counter
	opts       Options
	logger     *logging.Logger
}

// NewTracker creates a quota tracker
func NewTracker(categories phrases.CategoryStore, counter Counter, opts Options, logger *logging.Logger) *Tracker {
	def := DefaultOptions()
	if opts.DefaultQuota <= 0 {
		opts.DefaultQuota = def.DefaultQuota
	}
	if opts.WarningThreshold <= 0 || opts.WarningThreshold >= 1 {
		opts.WarningThreshold = def.WarningThreshold
	}
	return &Tracker{
		categories: categories,
		counter:    counter,
		opts:       opts,
		logger:     logger.WithComponent("quota"),
	}
}

func (t *Tracker) limit(ctx context.Context, category string) (int, error) {
	c, err := t.categories.GetCategory(ctx, category)
	if errors.Is(err, phrases.ErrNotFound) {
		return t.opts.DefaultQuota, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load category %q: %w", category, err)
	}
	return c.Quota, nil
}

// GetCategoryStatus returns the capacity of one category. Categories without
// a stored quota use the default.
func (t *Tracker) GetCategoryStatus(ctx context.Context, category string) (*CategoryStatus, error) {
	limit, err := t.limit(ctx, category)
	if err != nil {
		return nil, err
	}
	current, err := t.counter.CountPhrases(ctx, phrases.Query{Category: category})
	if err != nil {
		return nil, fmt.Errorf("failed to count phrases in %q: %w", category, err)
	}
	s := newStatus(category, current, limit, t.opts.WarningThreshold)
	return &s, nil
}

// Evaluate decides on one more phrase given a status snapshot and the number
// of phrases already accepted against it but not yet counted.
func (t *Tracker) Evaluate(s CategoryStatus, pending int) Decision {
	projected := newStatus(s.Category, s.Current+pending, s.Limit, t.opts.WarningThreshold)
	d := Decision{Status: projected, CanAdd: projected.CanAdd}
	switch {
	case !projected.CanAdd:
		d.Reason = ReasonQuotaExceeded
		d.Message = fmt.Sprintf("category %q is full (%d/%d)", s.Category, projected.Current, projected.Limit)
	case projected.Status == StatusWarning:
		d.Warning = true
		d.Message = fmt.Sprintf("category %q is at %.0f%% of its quota", s.Category, projected.Percentage)
	}
	return d
}

// CanAddPhrase reports whether category has room for one more phrase
func (t *Tracker) CanAddPhrase(ctx context.Context, category string) (*Decision, error) {
	s, err := t.GetCategoryStatus(ctx, category)
	if err != nil {
		return nil, err
	}
	d := t.Evaluate(*s, 0)
	return &d, nil
}

// SetQuota changes one category's quota
func (t *Tracker) SetQuota(ctx context.Context, category string, quota int) error {
	return t.BulkUpdateQuotas(ctx, map[string]int{category: quota})
}

// BulkUpdateQuotas validates every value before persisting any, then writes
// them all in one transaction.
func (t *Tracker) BulkUpdateQuotas(ctx context.Context, quotas map[string]int) error {
	for category, q := range quotas {
		if category == "" {
			return fmt.Errorf("%w: category name is empty", phrases.ErrInvalidQuota)
		}
		if q < 0 {
			return fmt.Errorf("%w: %q got %d", phrases.ErrInvalidQuota, category, q)
		}
	}
	if len(quotas) == 0 {
		return nil
	}
	if err := t.categories.SetQuotas(ctx, quotas); err != nil {
		return fmt.Errorf("failed to update quotas: %w", err)
	}
	t.logger.Info("Quotas updated", map[string]interface{}{"categories": len(quotas)})
	return nil
}

// GetAllStatuses returns every known category: configured ones and any that
// only exist in the phrase table. Sorted by name.
func (t *Tracker) GetAllStatuses(ctx context.Context) ([]CategoryStatus, error) {
	cats, err := t.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	counts, err := t.counter.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count phrases: %w", err)
	}

	limits := make(map[string]int, len(cats))
	for _, c := range cats {
		limits[c.Name] = c.Quota
	}
	for name := range counts {
		if _, ok := limits[name]; !ok {
			limits[name] = t.opts.DefaultQuota
		}
	}

	out := make([]CategoryStatus, 0, len(limits))
	for name, limit := range limits {
		out = append(out, newStatus(name, counts[name].Total, limit, t.opts.WarningThreshold))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// Recommendation is an advisory quota change. Nothing applies it automatically.
type Recommendation struct {
	Category       string `json:"category"`
	Action         string `json:"action"`
	Current        int    `json:"current"`
	CurrentLimit   int    `json:"currentLimit"`
	SuggestedLimit int    `json:"suggestedLimit"`
	Reason         string `json:"reason"`
}

// Recommendation actions
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
)

// GetQuotaRecommendations proposes +20% for full categories and a smaller
// limit for large categories under 10% utilization.
func (t *Tracker) GetQuotaRecommendations(ctx context.Context) ([]Recommendation, error) {
	statuses, err := t.GetAllStatuses(ctx)
	if err != nil {
		return nil, err
	}

	var recs []Recommendation
	for _, s := range statuses {
		switch {
		case s.Status == StatusFull && s.Limit > 0:
			recs = append(recs, Recommendation{
				Category:       s.Category,
				Action:         ActionIncrease,
				Current:        s.Current,
				CurrentLimit:   s.Limit,
				SuggestedLimit: (s.Limit*12 + 9) / 10,
				Reason:         "category is full",
			})
		case s.Limit >= 100 && s.Percentage < 10:
			suggested := s.Current * 2
			if suggested < 50 {
				suggested = 50
			}
			recs = append(recs, Recommendation{
				Category:       s.Category,
				Action:         ActionDecrease,
				Current:        s.Current,
				CurrentLimit:   s.Limit,
				SuggestedLimit: suggested,
				Reason:         fmt.Sprintf("only %.1f%% utilized, review the limit", s.Percentage),
			})
		}
	}
	return recs, nil
}
