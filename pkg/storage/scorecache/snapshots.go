package scorecache

import (
	"context"
	"encoding/hex"
	"net/url"

	"golang.org/x/crypto/blake2b"

	"github.com/wordsonphone/phrasecurator/pkg/curation/bloom"
)

// StoreIdentity derives the snapshot key for a phrase store from its
// connection string. The password is dropped so prompting for it does not
// orphan earlier snapshots.
func StoreIdentity(connStr string) string {
	if u, err := url.Parse(connStr); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		connStr = u.String()
	}
	sum := blake2b.Sum256([]byte(connStr))
	return hex.EncodeToString(sum[:16])
}

// SaveFilters snapshots every store-built filter under storeID. Filters that
// only exist from AddPhrase calls are skipped.
func (c *Cache) SaveFilters(ctx context.Context, storeID string, filters *bloom.Filters) (int, error) {
	saved := 0
	for _, category := range filters.Categories() {
		data, err := filters.Snapshot(category)
		if err != nil {
			continue
		}
		if err := c.SaveSnapshot(ctx, storeID, category, data); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// RestoreFilters loads the snapshots saved for storeID into filters.
// Unreadable snapshots are logged and left for a rebuild.
func (c *Cache) RestoreFilters(ctx context.Context, storeID string, filters *bloom.Filters) (int, error) {
	snaps, err := c.LoadSnapshots(ctx, storeID)
	if err != nil {
		return 0, err
	}
	restored := 0
	for category, data := range snaps {
		if err := filters.Restore(category, data); err != nil {
			c.logger.Warn("Ignoring bloom snapshot", map[string]interface{}{"category": category, "error": err.Error()})
			continue
		}
		restored++
	}
	return restored, nil
}
