// Package scorecache persists scoring results and bloom filter snapshots in
// a local SQLite file so repeated runs skip external lookups.
package scorecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS score_cache (
	cache_key   TEXT PRIMARY KEY,
	phrase      TEXT NOT NULL,
	category    TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	total_score INTEGER NOT NULL,
	verdict     TEXT NOT NULL,
	result      TEXT NOT NULL,
	scored_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_score_cache_category ON score_cache (category);

CREATE TABLE IF NOT EXISTS filter_snapshots (
	store_id TEXT NOT NULL,
	category TEXT NOT NULL,
	data     BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (store_id, category)
);
`

// Cache implements scoring.Cache on SQLite
type Cache struct {
	db     *sqlx.DB
	path   string
	logger *logging.Logger
}

type entry struct {
	Key        string    `db:"cache_key"`
	Phrase     string    `db:"phrase"`
	Category   string    `db:"category"`
	Source     string    `db:"source"`
	TotalScore int       `db:"total_score"`
	Verdict    string    `db:"verdict"`
	Result     string    `db:"result"`
	ScoredAt   time.Time `db:"scored_at"`
}

// Open creates or opens the cache file. The connection runs in WAL mode with
// a busy timeout and a single open connection so concurrent scorers
// serialize on the Go side.
func Open(path string, logger *logging.Logger) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open score cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply score cache schema: %w", err)
	}

	return &Cache{
		db:     db,
		path:   path,
		logger: logger.WithComponent("scorecache"),
	}, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached result for key
func (c *Cache) Get(ctx context.Context, key string) (*scoring.Result, bool, error) {
	var e entry
	err := c.db.GetContext(ctx, &e, `SELECT * FROM score_cache WHERE cache_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read score cache: %w", err)
	}

	var r scoring.Result
	if err := json.Unmarshal([]byte(e.Result), &r); err != nil {
		c.logger.Warn("Dropping unreadable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false, nil
	}
	return &r, true, nil
}

// Put stores result under key, replacing any previous entry
func (c *Cache) Put(ctx context.Context, key string, result *scoring.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}
	e := entry{
		Key:        key,
		Phrase:     result.Phrase,
		Category:   result.Category,
		Source:     result.Source,
		TotalScore: result.TotalScore,
		Verdict:    string(result.Verdict),
		Result:     string(data),
		ScoredAt:   result.ScoredAt.UTC(),
	}
	_, err = c.db.NamedExecContext(ctx, `
		INSERT INTO score_cache (cache_key, phrase, category, source, total_score, verdict, result, scored_at)
		VALUES (:cache_key, :phrase, :category, :source, :total_score, :verdict, :result, :scored_at)
		ON CONFLICT (cache_key) DO UPDATE SET
			total_score = excluded.total_score,
			verdict = excluded.verdict,
			result = excluded.result,
			scored_at = excluded.scored_at`, e)
	if err != nil {
		return fmt.Errorf("failed to write score cache: %w", err)
	}
	return nil
}

// Purge removes entries scored before cutoff
func (c *Cache) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM score_cache WHERE scored_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge score cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.logger.Info("Purged score cache", map[string]interface{}{"removed": n})
	}
	return n, nil
}

// CategoryStats summarizes cached scores for one category
type CategoryStats struct {
	Category     string  `db:"category" json:"category"`
	Entries      int     `db:"entries" json:"entries"`
	AverageScore float64 `db:"average_score" json:"averageScore"`
}

// Stats returns per-category cache totals
func (c *Cache) Stats(ctx context.Context) ([]CategoryStats, error) {
	var stats []CategoryStats
	err := c.db.SelectContext(ctx, &stats, `
		SELECT category, COUNT(*) AS entries, AVG(total_score) AS average_score
		FROM score_cache
		GROUP BY category
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to read score cache stats: %w", err)
	}
	return stats, nil
}

// SaveSnapshot stores a serialized bloom filter for category. storeID names
// the phrase store the filter was built from.
func (c *Cache) SaveSnapshot(ctx context.Context, storeID, category string, data []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO filter_snapshots (store_id, category, data, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (store_id, category) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		storeID, category, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save bloom snapshot for %s: %w", category, err)
	}
	return nil
}

// LoadSnapshots returns the bloom snapshots saved for storeID keyed by
// category
func (c *Cache) LoadSnapshots(ctx context.Context, storeID string) (map[string][]byte, error) {
	rows, err := c.db.QueryxContext(ctx, `SELECT category, data FROM filter_snapshots WHERE store_id = ?`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bloom snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var category string
		var data []byte
		if err := rows.Scan(&category, &data); err != nil {
			return nil, fmt.Errorf("failed to scan bloom snapshot: %w", err)
		}
		out[category] = data
	}
	return out, rows.Err()
}

var _ scoring.Cache = (*Cache)(nil)
