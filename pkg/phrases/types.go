// Package phrases defines the curated phrase corpus: the persisted Phrase and
// Category records, the rejection taxonomy shared by every curation stage, and
// the store interfaces the pipeline reads and writes through.
package phrases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reason is a machine-readable curation outcome
type Reason string

const (
	ReasonApproved       Reason = "APPROVED"
	ReasonInvalidPhrase  Reason = "INVALID_PHRASE"
	ReasonExactDuplicate Reason = "EXACT_DUPLICATE"
	ReasonFirstWordLimit Reason = "FIRST_WORD_LIMIT"
	ReasonSimilarPhrase  Reason = "SIMILAR_PHRASE"
	ReasonQuotaExceeded  Reason = "QUOTA_EXCEEDED"
	ReasonLowScore       Reason = "LOW_SCORE"
)

var (
	// ErrNotFound is returned when a phrase or category does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuota is returned for negative quota values
	ErrInvalidQuota = errors.New("quota must be a non-negative integer")

	// ErrDuplicatePhrase is returned when an insert would break per-category uniqueness
	ErrDuplicatePhrase = errors.New("phrase already exists in category")
)

// Phrase is a persisted, curated phrase
type Phrase struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Text           string    `json:"phrase" db:"phrase"`
	Category       string    `json:"category" db:"category"`
	FirstWord      string    `json:"first_word" db:"first_word"`
	Recent         bool      `json:"recent" db:"recent"`
	Score          *int      `json:"score,omitempty" db:"score"`
	SourceProvider *string   `json:"source_provider,omitempty" db:"source_provider"`
	ModelID        *string   `json:"model_id,omitempty" db:"model_id"`
	Added          time.Time `json:"added" db:"added"`
}

// ScoreOrZero returns the phrase score, treating unscored phrases as 0
func (p Phrase) ScoreOrZero() int {
	if p.Score == nil {
		return 0
	}
	return *p.Score
}

// Category is a named phrase bucket with a capacity ceiling. A nil
// TargetRecentPercentage falls back to the global recency target.
type Category struct {
	Name                   string   `json:"name" db:"name"`
	Description            string   `json:"description" db:"description"`
	Quota                  int      `json:"quota" db:"quota"`
	TargetRecentPercentage *float64 `json:"target_recent_percentage,omitempty" db:"target_recent_percentage"`
}

// Percent returns a pointer for TargetRecentPercentage literals
func Percent(v float64) *float64 {
	return &v
}

// Query filters phrase listings. Zero values mean "no filter".
type Query struct {
	Category  string
	FirstWord string
	Recent    *bool
	MinScore  *int
	MaxScore  *int
}

// Matches reports whether p satisfies the query
func (q Query) Matches(p Phrase) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.FirstWord != "" && p.FirstWord != q.FirstWord {
		return false
	}
	if q.Recent != nil && p.Recent != *q.Recent {
		return false
	}
	if q.MinScore != nil && (p.Score == nil || *p.Score < *q.MinScore) {
		return false
	}
	if q.MaxScore != nil && (p.Score == nil || *p.Score > *q.MaxScore) {
		return false
	}
	return true
}

// CategoryCounts holds aggregate counts for one category
type CategoryCounts struct {
	Total  int `json:"total"`
	Recent int `json:"recent"`
}

// Store is the authoritative phrase table
type Store interface {
	// FindExact returns phrases whose text equals text exactly, in any category
	FindExact(ctx context.Context, text string) ([]Phrase, error)
	ListPhrases(ctx context.Context, q Query) ([]Phrase, error)
	CountPhrases(ctx context.Context, q Query) (int, error)
	CountByCategory(ctx context.Context) (map[string]CategoryCounts, error)
	// InsertPhrases writes all phrases in one transaction
	InsertPhrases(ctx context.Context, batch []Phrase) error
	UpdateScores(ctx context.Context, scores map[uuid.UUID]int) error
	// SetRecency flips the recent flag for every id in one transaction. It fails
	// without changes if any id is unknown.
	SetRecency(ctx context.Context, ids []uuid.UUID, recent bool) (int, error)
}

// CategoryStore persists category configuration
type CategoryStore interface {
	GetCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpsertCategory(ctx context.Context, c Category) error
	// SetQuotas updates all quotas in one transaction, creating missing categories
	SetQuotas(ctx context.Context, quotas map[string]int) error
}

// DefaultCategories are seeded on first initialization
func DefaultCategories() []Category {
	return []Category{
		{Name: "Movies & TV", Description: "Films, shows and characters", Quota: 1000, TargetRecentPercentage: Percent(15)},
		{Name: "Music", Description: "Artists, songs and genres", Quota: 1000, TargetRecentPercentage: Percent(15)},
		{Name: "Sports", Description: "Athletes, teams and games", Quota: 800, TargetRecentPercentage: Percent(10)},
		{Name: "Food & Drink", Description: "Dishes, drinks and brands", Quota: 800, TargetRecentPercentage: Percent(5)},
		{Name: "Places", Description: "Landmarks, cities and countries", Quota: 800, TargetRecentPercentage: Percent(5)},
		{Name: "Famous People", Description: "Celebrities and historical figures", Quota: 1000, TargetRecentPercentage: Percent(15)},
		{Name: "Technology & Science", Description: "Gadgets, apps and discoveries", Quota: 600, TargetRecentPercentage: Percent(20)},
		{Name: "Video Games", Description: "Games, consoles and characters", Quota: 600, TargetRecentPercentage: Percent(15)},
		{Name: "Everything", Description: "Mixed everyday phrases", Quota: 2000, TargetRecentPercentage: Percent(10)},
	}
}
