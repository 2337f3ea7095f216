// Package bloom keeps one probabilistic membership filter per category so that
// candidates that are definitely new can skip the case-variant scan.
//
// A filter never yields false negatives for keys it was given, but it is a
// projection of the phrase store and is never consulted to reject a phrase.
package bloom

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/wordsonphone/phrasecurator/pkg/curation/normalize"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// Source is the slice of the phrase store filters are built from
type Source interface {
	ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error)
	CountPhrases(ctx context.Context, q phrases.Query) (int, error)
	CountByCategory(ctx context.Context) (map[string]phrases.CategoryCounts, error)
}

// Options controls filter sizing
type Options struct {
	BitsPerElement uint
	HashFunctions  uint
	MinCapacity    uint
}

// DefaultOptions targets roughly a 1% false-positive rate
func DefaultOptions() Options {
	return Options{BitsPerElement: 10, HashFunctions: 3, MinCapacity: 100}
}

// BuildStats describes one filter build
type BuildStats struct {
	Category        string        `json:"category"`
	Count           int           `json:"count"`
	Capacity        uint          `json:"capacity"`
	Bits            uint          `json:"bits"`
	HashFunctions   uint          `json:"hashFunctions"`
	EstimatedFPRate float64       `json:"estimatedFalsePositiveRate"`
	Duration        time.Duration `json:"duration"`
}

// Candidate is a phrase awaiting duplicate checks
type Candidate struct {
	Phrase   string `json:"phrase"`
	Category string `json:"category"`
}

// FilterStats summarizes a FilterCandidates pass
type FilterStats struct {
	Total          int     `json:"total"`
	LikelyNew      int     `json:"likelyNew"`
	MaybeDuplicate int     `json:"maybeDuplicate"`
	FilterRatio    float64 `json:"filterRatio"`
}

// FilterResult partitions candidates by filter answer
type FilterResult struct {
	Filtered        []Candidate `json:"filtered"`
	MaybeDuplicates []Candidate `json:"maybeDuplicates"`
	Stats           FilterStats `json:"stats"`
}

type categoryFilter struct {
	filter     *bloom.BloomFilter
	capacity   uint
	builtCount int
	added      int
	fromStore  bool
	verified   bool
	stale      bool
	// keys added before any store build, replayed on build
	pending []string
}

func (cf *categoryFilter) overCapacity() bool {
	return uint(cf.builtCount+cf.added) > cf.capacity
}

// Filters holds the per-category filters
type Filters struct {
	mu      sync.RWMutex
	source  Source
	opts    Options
	filters map[string]*categoryFilter
	logger  *logging.Logger
}

// New creates an empty filter set. Categories are built lazily.
func New(source Source, opts Options, logger *logging.Logger) *Filters {
	def := DefaultOptions()
	if opts.BitsPerElement == 0 {
		opts.BitsPerElement = def.BitsPerElement
	}
	if opts.HashFunctions == 0 {
		opts.HashFunctions = def.HashFunctions
	}
	if opts.MinCapacity == 0 {
		opts.MinCapacity = def.MinCapacity
	}
	return &Filters{
		source:  source,
		opts:    opts,
		filters: make(map[string]*categoryFilter),
		logger:  logger.WithComponent("bloom"),
	}
}

func key(phrase string) string {
	if n := normalize.Normalize(phrase).Normalized; n != "" {
		return normalize.Key(n)
	}
	return normalize.Key(phrase)
}

func (f *Filters) capacityFor(count int) uint {
	capacity := uint(2 * count)
	if capacity < f.opts.MinCapacity {
		capacity = f.opts.MinCapacity
	}
	return capacity
}

func (f *Filters) newFilter(count int) (*bloom.BloomFilter, uint) {
	capacity := f.capacityFor(count)
	return bloom.New(capacity*f.opts.BitsPerElement, f.opts.HashFunctions), capacity
}

// MightExist reports whether phrase could already be in category. It answers
// true for categories that have no filter yet.
func (f *Filters) MightExist(phrase, category string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cf, ok := f.filters[category]
	if !ok {
		return true
	}
	return cf.filter.TestString(key(phrase))
}

// AddPhrase records phrase in the category filter. There is no removal.
func (f *Filters) AddPhrase(phrase, category string) {
	k := key(phrase)

	f.mu.Lock()
	defer f.mu.Unlock()

	cf, ok := f.filters[category]
	if !ok {
		filter, capacity := f.newFilter(0)
		cf = &categoryFilter{filter: filter, capacity: capacity}
		f.filters[category] = cf
	}
	cf.filter.AddString(k)
	cf.added++
	if !cf.fromStore {
		cf.pending = append(cf.pending, k)
	}
	if cf.overCapacity() && !cf.stale {
		cf.stale = true
		f.logger.Debug("Filter exceeded capacity", map[string]interface{}{
			"category": category,
			"capacity": cf.capacity,
		})
	}
}

// BuildCategoryFilter builds the category filter from the phrase store if it
// has not been built yet.
func (f *Filters) BuildCategoryFilter(ctx context.Context, category string) (*BuildStats, error) {
	f.mu.RLock()
	cf, ok := f.filters[category]
	built := ok && cf.fromStore
	f.mu.RUnlock()
	if built {
		return f.statsFor(category), nil
	}
	return f.RebuildCategoryFilter(ctx, category)
}

// RebuildCategoryFilter drops the category filter and reconstructs it from the
// phrase store, sized for twice the current count.
func (f *Filters) RebuildCategoryFilter(ctx context.Context, category string) (*BuildStats, error) {
	start := time.Now()

	existing, err := f.source.ListPhrases(ctx, phrases.Query{Category: category})
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases for %s: %w", category, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	filter, capacity := f.newFilter(len(existing))
	for _, p := range existing {
		filter.AddString(key(p.Text))
	}

	replayed := 0
	if old, ok := f.filters[category]; ok {
		for _, k := range old.pending {
			filter.AddString(k)
			replayed++
		}
	}

	f.filters[category] = &categoryFilter{
		filter:     filter,
		capacity:   capacity,
		builtCount: len(existing),
		added:      replayed,
		fromStore:  true,
		verified:   true,
	}

	stats := f.statsLocked(category)
	stats.Duration = time.Since(start)
	f.logger.Info("Built category filter", map[string]interface{}{
		"category": category,
		"count":    stats.Count,
		"bits":     stats.Bits,
		"fp_rate":  stats.EstimatedFPRate,
	})
	return stats, nil
}

// MarkStale flags the category filter for rebuild on its next use
func (f *Filters) MarkStale(category string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cf, ok := f.filters[category]; ok {
		cf.stale = true
	}
}

// IsStale reports whether the category filter needs a rebuild
func (f *Filters) IsStale(category string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cf, ok := f.filters[category]
	return ok && (cf.stale || cf.overCapacity())
}

// EnsureFresh builds the category filter from the store when it is missing,
// was only fed by AddPhrase, was restored from a snapshot that no longer
// matches the store, or is stale.
func (f *Filters) EnsureFresh(ctx context.Context, category string) error {
	f.mu.RLock()
	cf, ok := f.filters[category]
	needsBuild := !ok || !cf.fromStore || cf.stale || cf.overCapacity()
	needsVerify := ok && !needsBuild && !cf.verified
	var expected int
	if ok {
		expected = cf.builtCount + cf.added
	}
	f.mu.RUnlock()

	if needsVerify {
		count, err := f.source.CountPhrases(ctx, phrases.Query{Category: category})
		if err != nil {
			return fmt.Errorf("failed to count phrases for %s: %w", category, err)
		}
		if count == expected {
			f.mu.Lock()
			cf.verified = true
			f.mu.Unlock()
			return nil
		}
		f.logger.Info("Snapshot out of date, rebuilding", map[string]interface{}{
			"category": category,
			"expected": expected,
			"actual":   count,
		})
		needsBuild = true
	}

	if !needsBuild {
		return nil
	}
	_, err := f.RebuildCategoryFilter(ctx, category)
	return err
}

// Check is MightExist on a fresh filter
func (f *Filters) Check(ctx context.Context, phrase, category string) (bool, error) {
	if err := f.EnsureFresh(ctx, category); err != nil {
		return true, err
	}
	return f.MightExist(phrase, category), nil
}

// RefreshStale compares every filter with the store counts and rebuilds the
// ones whose category grew past the capacity they were sized for.
func (f *Filters) RefreshStale(ctx context.Context) ([]string, error) {
	counts, err := f.source.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	var stale []string
	f.mu.Lock()
	for category, cf := range f.filters {
		if c, ok := counts[category]; ok && uint(c.Total) > cf.capacity {
			cf.stale = true
		}
		if cf.stale || cf.overCapacity() {
			stale = append(stale, category)
		}
	}
	f.mu.Unlock()

	sort.Strings(stale)
	for _, category := range stale {
		if _, err := f.RebuildCategoryFilter(ctx, category); err != nil {
			return stale, err
		}
	}
	return stale, nil
}

// FilterCandidates splits candidates into likely-new and maybe-duplicate
// groups. Likely-new candidates still go through the duplicate detector.
func (f *Filters) FilterCandidates(ctx context.Context, candidates []Candidate) (*FilterResult, error) {
	result := &FilterResult{
		Filtered:        []Candidate{},
		MaybeDuplicates: []Candidate{},
	}

	checked := make(map[string]bool)
	for _, c := range candidates {
		if !checked[c.Category] {
			if err := f.EnsureFresh(ctx, c.Category); err != nil {
				return nil, err
			}
			checked[c.Category] = true
		}
		if f.MightExist(c.Phrase, c.Category) {
			result.MaybeDuplicates = append(result.MaybeDuplicates, c)
		} else {
			result.Filtered = append(result.Filtered, c)
		}
	}

	result.Stats = FilterStats{
		Total:          len(candidates),
		LikelyNew:      len(result.Filtered),
		MaybeDuplicate: len(result.MaybeDuplicates),
	}
	if len(candidates) > 0 {
		result.Stats.FilterRatio = float64(len(result.Filtered)) / float64(len(candidates))
	}
	return result, nil
}

// Stats returns the current state of the category filter, or nil
func (f *Filters) Stats(category string) *BuildStats {
	return f.statsFor(category)
}

// Categories lists categories that have a filter
func (f *Filters) Categories() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.filters))
	for name := range f.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Filters) statsFor(category string) *BuildStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.statsLocked(category)
}

func (f *Filters) statsLocked(category string) *BuildStats {
	cf, ok := f.filters[category]
	if !ok {
		return nil
	}
	n := cf.builtCount + cf.added
	return &BuildStats{
		Category:        category,
		Count:           n,
		Capacity:        cf.capacity,
		Bits:            cf.filter.Cap(),
		HashFunctions:   cf.filter.K(),
		EstimatedFPRate: falsePositiveRate(cf.filter.Cap(), cf.filter.K(), uint(n)),
	}
}

// falsePositiveRate is the standard (1 - e^(-kn/m))^k estimate
func falsePositiveRate(m, k, n uint) float64 {
	if m == 0 {
		return 1
	}
	return math.Pow(1-math.Exp(-float64(k)*float64(n)/float64(m)), float64(k))
}

type snapshot struct {
	Capacity   uint   `json:"capacity"`
	BuiltCount int    `json:"builtCount"`
	Added      int    `json:"added"`
	Filter     []byte `json:"filter"`
}

// Snapshot serializes a store-built category filter
func (f *Filters) Snapshot(category string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cf, ok := f.filters[category]
	if !ok || !cf.fromStore {
		return nil, fmt.Errorf("no built filter for category %s", category)
	}
	data, err := cf.filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}
	return json.Marshal(snapshot{
		Capacity:   cf.capacity,
		BuiltCount: cf.builtCount,
		Added:      cf.added,
		Filter:     data,
	})
}

// Restore loads a snapshot. The restored filter is checked against the store
// count on first use and rebuilt if the category changed since.
func (f *Filters) Restore(category string, data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	filter := &bloom.BloomFilter{}
	if err := filter.UnmarshalBinary(snap.Filter); err != nil {
		return fmt.Errorf("failed to unmarshal filter: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters[category] = &categoryFilter{
		filter:     filter,
		capacity:   snap.Capacity,
		builtCount: snap.BuiltCount,
		added:      snap.Added,
		fromStore:  true,
	}
	return nil
}
