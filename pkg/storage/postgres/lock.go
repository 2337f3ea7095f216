package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrLocked is returned when another process already holds the writer lock
var ErrLocked = errors.New("another phrasecurator process is writing to this database")

// writerLockKey identifies the session advisory lock shared by all
// mutating commands.
const writerLockKey int64 = 0x70687261736573 // "phrases"

// AcquireWriterLock takes the session advisory lock without waiting. The
// lock lives on a dedicated pooled connection until ReleaseWriterLock or
// Close.
func (db *Database) AcquireWriterLock(ctx context.Context) error {
	if db.lockConn != nil {
		return nil
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for writer lock: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", writerLockKey).Scan(&ok); err != nil {
		conn.Release()
		return fmt.Errorf("failed to take writer lock: %w", err)
	}
	if !ok {
		conn.Release()
		return ErrLocked
	}

	db.lockConn = conn
	db.logger.Debug("Writer lock acquired")
	return nil
}

// ReleaseWriterLock gives the advisory lock back
func (db *Database) ReleaseWriterLock(ctx context.Context) error {
	if db.lockConn == nil {
		return nil
	}
	conn := db.lockConn
	db.lockConn = nil
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", writerLockKey); err != nil {
		return fmt.Errorf("failed to release writer lock: %w", err)
	}
	db.logger.Debug("Writer lock released")
	return nil
}
