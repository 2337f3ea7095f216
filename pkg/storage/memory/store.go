// Package memory is an in-process phrase store used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// Store implements phrases.Store and phrases.CategoryStore in memory
type Store struct {
	mu         sync.RWMutex
	rows       []phrases.Phrase
	byID       map[uuid.UUID]int
	categories map[string]phrases.Category
	now        func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		byID:       make(map[uuid.UUID]int),
		categories: make(map[string]phrases.Category),
		now:        time.Now,
	}
}

// SeedDefaultCategories registers the default categories that are missing
func (s *Store) SeedDefaultCategories(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range phrases.DefaultCategories() {
		if _, ok := s.categories[c.Name]; !ok {
			s.categories[c.Name] = c
		}
	}
	return nil
}

func uniqueKey(category, text string) string {
	return category + "\x00" + strings.ToLower(text)
}

func (s *Store) FindExact(ctx context.Context, text string) ([]phrases.Phrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []phrases.Phrase
	for _, p := range s.rows {
		if p.Text == text {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []phrases.Phrase{}
	for _, p := range s.rows {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CountPhrases(ctx context.Context, q phrases.Query) (int, error) {
	list, err := s.ListPhrases(ctx, q)
	return len(list), err
}

func (s *Store) CountByCategory(ctx context.Context) (map[string]phrases.CategoryCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]phrases.CategoryCounts)
	for _, p := range s.rows {
		c := counts[p.Category]
		c.Total++
		if p.Recent {
			c.Recent++
		}
		counts[p.Category] = c
	}
	return counts, nil
}

// InsertPhrases appends the batch, or nothing if any phrase collides
func (s *Store) InsertPhrases(ctx context.Context, batch []phrases.Phrase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.rows)+len(batch))
	for _, p := range s.rows {
		seen[uniqueKey(p.Category, p.Text)] = true
	}
	for _, p := range batch {
		k := uniqueKey(p.Category, p.Text)
		if seen[k] {
			return fmt.Errorf("failed to insert %q into %s: %w", p.Text, p.Category, phrases.ErrDuplicatePhrase)
		}
		seen[k] = true
	}

	for _, p := range batch {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Added.IsZero() {
			p.Added = s.now().UTC()
		}
		s.byID[p.ID] = len(s.rows)
		s.rows = append(s.rows, p)
	}
	return nil
}

func (s *Store) UpdateScores(ctx context.Context, scores map[uuid.UUID]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range scores {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("failed to update score for %s: %w", id, phrases.ErrNotFound)
		}
	}
	for id, score := range scores {
		v := score
		s.rows[s.byID[id]].Score = &v
	}
	return nil
}

func (s *Store) SetRecency(ctx context.Context, ids []uuid.UUID, recent bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unique := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return 0, fmt.Errorf("failed to set recency for %s: %w", id, phrases.ErrNotFound)
		}
		unique[id] = true
	}
	for id := range unique {
		s.rows[s.byID[id]].Recent = recent
	}
	return len(unique), nil
}

func (s *Store) GetCategory(ctx context.Context, name string) (phrases.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[name]
	if !ok {
		return phrases.Category{}, fmt.Errorf("category %q: %w", name, phrases.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]phrases.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]phrases.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertCategory(ctx context.Context, c phrases.Category) error {
	if c.Quota < 0 {
		return phrases.ErrInvalidQuota
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.Name] = c
	return nil
}

// SetQuotas applies every quota or none of them
func (s *Store) SetQuotas(ctx context.Context, quotas map[string]int) error {
	for name, q := range quotas {
		if q < 0 {
			return fmt.Errorf("quota for %s: %w", name, phrases.ErrInvalidQuota)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, q := range quotas {
		c, ok := s.categories[name]
		if !ok {
			c = phrases.Category{Name: name}
		}
		c.Quota = q
		s.categories[name] = c
	}
	return nil
}
