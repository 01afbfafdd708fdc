package cas

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tobert/hootenanny-go/internal/telemetry"
)

// Sweeper reclaims orphaned staging files — ones whose owning process
// crashed before Seal or RemoveStaging ran (spec.md §4.3 Failure: "Staging
// files left behind are orphans reclaimable by a sweeper").
type Sweeper struct {
	store  *Store
	ttl    time.Duration
	logger telemetry.Logger
}

// NewSweeper builds a Sweeper that reclaims staging files older than ttl.
func NewSweeper(store *Store, ttl time.Duration, logger telemetry.Logger) *Sweeper {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Sweeper{store: store, ttl: ttl, logger: logger}
}

// Sweep walks the staging/ directory once and removes every file older
// than the configured TTL, returning the number reclaimed.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	root := filepath.Join(sw.store.root, "staging")
	cutoff := time.Now().Add(-sw.ttl)
	reclaimed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			sw.logger.Warn(ctx, "cas sweeper: remove orphaned staging file failed", "path", path, "err", rmErr)
			return nil
		}
		reclaimed++
		return nil
	})
	return reclaimed, err
}
