package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

const phraseColumns = `id, phrase, category, first_word, recent, score, source_provider, model_id, added`

// Store implements phrases.Store and phrases.CategoryStore on Postgres
type Store struct {
	db *Database
}

// NewStore wraps a connected database
func NewStore(db *Database) *Store {
	return &Store{db: db}
}

func scanPhrase(row pgx.Row) (phrases.Phrase, error) {
	var p phrases.Phrase
	err := row.Scan(
		&p.ID,
		&p.Text,
		&p.Category,
		&p.FirstWord,
		&p.Recent,
		&p.Score,
		&p.SourceProvider,
		&p.ModelID,
		&p.Added,
	)
	return p, err
}

func collectPhrases(rows pgx.Rows) ([]phrases.Phrase, error) {
	defer rows.Close()
	var out []phrases.Phrase
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phrase: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read phrases: %w", err)
	}
	return out, nil
}

// whereClause renders q as SQL conditions with positional args
func whereClause(q phrases.Query) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.FirstWord != "" {
		add("first_word = $%d", q.FirstWord)
	}
	if q.Recent != nil {
		add("recent = $%d", *q.Recent)
	}
	if q.MinScore != nil {
		add("score >= $%d", *q.MinScore)
	}
	if q.MaxScore != nil {
		add("score <= $%d", *q.MaxScore)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindExact returns phrases with exactly this text in any category
func (s *Store) FindExact(ctx context.Context, text string) ([]phrases.Phrase, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT `+phraseColumns+` FROM phrases WHERE phrase = $1 ORDER BY category`, text)
	if err != nil {
		return nil, fmt.Errorf("failed to find phrase: %w", err)
	}
	return collectPhrases(rows)
}

// ListPhrases returns matching phrases, oldest first
func (s *Store) ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error) {
	where, args := whereClause(q)
	rows, err := s.db.pool.Query(ctx, `SELECT `+phraseColumns+` FROM phrases`+where+` ORDER BY added, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}
	return collectPhrases(rows)
}

// CountPhrases counts matching phrases
func (s *Store) CountPhrases(ctx context.Context, q phrases.Query) (int, error) {
	where, args := whereClause(q)
	var n int
	if err := s.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM phrases`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count phrases: %w", err)
	}
	return n, nil
}

// CountByCategory returns total and recent counts per category
func (s *Store) CountByCategory(ctx context.Context) (map[string]phrases.CategoryCounts, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT category, COUNT(*), COUNT(*) FILTER (WHERE recent)
		FROM phrases
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count phrases by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]phrases.CategoryCounts)
	for rows.Next() {
		var name string
		var c phrases.CategoryCounts
		if err := rows.Scan(&name, &c.Total, &c.Recent); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[name] = c
	}
	return counts, rows.Err()
}

// InsertPhrases inserts the whole batch in one transaction. A uniqueness
// violation rolls everything back and reports phrases.ErrDuplicatePhrase.
func (s *Store) InsertPhrases(ctx context.Context, batch []phrases.Phrase) error {
	if len(batch) == 0 {
		return nil
	}
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		for _, p := range batch {
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			var added interface{}
			if !p.Added.IsZero() {
				added = p.Added
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO phrases (id, phrase, category, first_word, recent, score, source_provider, model_id, added)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
				p.ID.String(),
				p.Text,
				p.Category,
				p.FirstWord,
				p.Recent,
				p.Score,
				p.SourceProvider,
				p.ModelID,
				added,
			)
			if err != nil {
				if pgCode(err) == codeUniqueViolation {
					return fmt.Errorf("failed to insert %q into %s: %w", p.Text, p.Category, phrases.ErrDuplicatePhrase)
				}
				return fmt.Errorf("failed to insert %q: %w", p.Text, err)
			}
		}
		return nil
	})
}

// UpdateScores sets scores for every id, or none if any id is unknown
func (s *Store) UpdateScores(ctx context.Context, scores map[uuid.UUID]int) error {
	if len(scores) == 0 {
		return nil
	}
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		for id, score := range scores {
			tag, err := tx.Exec(ctx, `UPDATE phrases SET score = $2 WHERE id = $1`, id.String(), score)
			if err != nil {
				return fmt.Errorf("failed to update score for %s: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("failed to update score for %s: %w", id, phrases.ErrNotFound)
			}
		}
		return nil
	})
}

// SetRecency flips the recent flag for every id in one statement. Unknown
// ids roll the change back.
func (s *Store) SetRecency(ctx context.Context, ids []uuid.UUID, recent bool) (int, error) {
	unique := make(map[uuid.UUID]bool, len(ids))
	params := make([]string, 0, len(ids))
	for _, id := range ids {
		if !unique[id] {
			unique[id] = true
			params = append(params, id.String())
		}
	}
	if len(params) == 0 {
		return 0, nil
	}

	err := s.db.WithRetry(ctx, func(ctx context.Context) error {
		return s.db.withTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `UPDATE phrases SET recent = $1 WHERE id = ANY($2::uuid[])`, recent, params)
			if err != nil {
				return fmt.Errorf("failed to set recency: %w", err)
			}
			if int(tag.RowsAffected()) != len(params) {
				return fmt.Errorf("failed to set recency: %d of %d ids unknown: %w",
					len(params)-int(tag.RowsAffected()), len(params), phrases.ErrNotFound)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return len(params), nil
}

// GetCategory loads one category
func (s *Store) GetCategory(ctx context.Context, name string) (phrases.Category, error) {
	var c phrases.Category
	err := s.db.pool.QueryRow(ctx, `
		SELECT name, description, quota, target_recent_percentage
		FROM categories WHERE name = $1`, name).
		Scan(&c.Name, &c.Description, &c.Quota, &c.TargetRecentPercentage)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("category %q: %w", name, phrases.ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("failed to get category %q: %w", name, err)
	}
	return c, nil
}

// ListCategories returns every category by name
func (s *Store) ListCategories(ctx context.Context) ([]phrases.Category, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT name, description, quota, target_recent_percentage
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []phrases.Category
	for rows.Next() {
		var c phrases.Category
		if err := rows.Scan(&c.Name, &c.Description, &c.Quota, &c.TargetRecentPercentage); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCategory creates or replaces a category
func (s *Store) UpsertCategory(ctx context.Context, c phrases.Category) error {
	if c.Quota < 0 {
		return phrases.ErrInvalidQuota
	}
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO categories (name, description, quota, target_recent_percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
			quota = EXCLUDED.quota,
			target_recent_percentage = EXCLUDED.target_recent_percentage,
			updated_at = NOW()`,
		c.Name, c.Description, c.Quota, c.TargetRecentPercentage)
	if err != nil {
		return fmt.Errorf("failed to upsert category %q: %w", c.Name, err)
	}
	return nil
}

// SetQuotas updates quotas in one transaction, creating missing categories
func (s *Store) SetQuotas(ctx context.Context, quotas map[string]int) error {
	for name, q := range quotas {
		if q < 0 {
			return fmt.Errorf("quota for %s: %w", name, phrases.ErrInvalidQuota)
		}
	}
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		for name, q := range quotas {
			_, err := tx.Exec(ctx, `
				INSERT INTO categories (name, quota) VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET quota = EXCLUDED.quota, updated_at = NOW()`,
				name, q)
			if err != nil {
				return fmt.Errorf("failed to set quota for %q: %w", name, err)
			}
		}
		return nil
	})
}

// SeedDefaultCategories inserts the default categories that do not exist yet
func (s *Store) SeedDefaultCategories(ctx context.Context) error {
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		for _, c := range phrases.DefaultCategories() {
			_, err := tx.Exec(ctx, `
				INSERT INTO categories (name, description, quota, target_recent_percentage)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (name) DO NOTHING`,
				c.Name, c.Description, c.Quota, c.TargetRecentPercentage)
			if err != nil {
				return fmt.Errorf("failed to seed category %q: %w", c.Name, err)
			}
		}
		return nil
	})
}
