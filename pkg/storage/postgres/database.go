// Package postgres is the authoritative phrase store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DatabaseConfig holds connection settings
type DatabaseConfig struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
}

// Database wraps a pgx pool
type Database struct {
	pool   *pgxpool.Pool
	config *DatabaseConfig
	logger *logging.Logger

	lockConn *pgxpool.Conn
}

// NewDatabase connects and pings
func NewDatabase(ctx context.Context, config *DatabaseConfig, logger *logging.Logger) (*Database, error) {
	if config == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = config.MaxConnections
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		pool:   pool,
		config: config,
		logger: logger.WithComponent("postgres"),
	}, nil
}

// Close releases the writer lock if held and closes the pool
func (db *Database) Close() {
	if db.lockConn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db.ReleaseWriterLock(ctx)
		cancel()
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies connectivity
func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Pool returns the underlying pool
func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

// MigrateToLatest applies the embedded migrations
func (db *Database) MigrateToLatest(ctx context.Context) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	migrationDB, err := sql.Open("postgres", db.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer migrationDB.Close()
	if err := migrationDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database for migration: %w", err)
	}

	driver, err := migratepg.WithInstance(migrationDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		db.logger.Info("Schema migrated", map[string]interface{}{"version": version, "dirty": dirty})
	}
	return nil
}

// HealthCheck runs a trivial query
func (db *Database) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to execute test query: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected test query result: %d", result)
	}
	return nil
}

// DatabaseStats provides connection pool statistics
type DatabaseStats struct {
	TotalConnections    int           `json:"total_connections"`
	IdleConnections     int           `json:"idle_connections"`
	AcquiredConnections int           `json:"acquired_connections"`
	MaxConnections      int           `json:"max_connections"`
	AcquireCount        int64         `json:"acquire_count"`
	AcquireDuration     time.Duration `json:"acquire_duration"`
}

// GetStats returns pool statistics
func (db *Database) GetStats() *DatabaseStats {
	stats := db.pool.Stat()
	return &DatabaseStats{
		TotalConnections:    int(stats.TotalConns()),
		IdleConnections:     int(stats.IdleConns()),
		AcquiredConnections: int(stats.AcquiredConns()),
		MaxConnections:      int(db.config.MaxConnections),
		AcquireCount:        stats.AcquireCount(),
		AcquireDuration:     stats.AcquireDuration(),
	}
}

// WithRetry retries fn on deadlocks and serialization failures with
// exponential backoff.
func (db *Database) WithRetry(ctx context.Context, fn func(context.Context) error) error {
	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !isRetryableError(err) {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<attempt)
		db.logger.Debug("Retrying transaction", map[string]interface{}{"attempt": attempt + 1, "error": err.Error()})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// Postgres error codes
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isRetryableError(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// withTx runs fn in a read-committed transaction, committing on success
func (db *Database) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Warn("Rollback failed", map[string]interface{}{"error": rbErr.Error()})
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
