package pipeline

import (
	"context"
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/repository"
)

// PersistableStore is what the persistence scheduler needs from the store.
type PersistableStore interface {
	IsDirty() bool
	ClearDirty()
	MarkDirty()
	Snapshot() (repository.DataDocument, error)
	SetLastUpdate(v int64)
}

// StartPersistenceScheduler runs a goroutine that periodically flushes the
// persisted slices to disk when they changed. On ctx.Done, it performs a final
// flush before returning. Returns a channel that is closed when the scheduler
// has completed shutdown.
func StartPersistenceScheduler(
	ctx context.Context,
	store PersistableStore,
	repo repository.Saver,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("persist").Debugf("starting persistence scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// final flush must complete even though ctx is gone
				Flush(context.Background(), store, repo)
				logger.WithComponent("persist").Info("persistence scheduler stopped after final flush")
				return
			case <-ticker.C:
				Flush(ctx, store, repo)
			}
		}
	}()
	return done
}

// Flush persists the whitelisted slices if dirty. It reports whether a save
// happened. The dirty flag is cleared before the snapshot is taken, so a
// dispatch racing with the save leaves the store dirty for the next flush.
func Flush(ctx context.Context, store PersistableStore, repo repository.Saver) bool {
	log := logger.WithComponent("persist")
	if !store.IsDirty() {
		log.Trace("state is clean, skipping flush")
		return false
	}

	if err := ctx.Err(); err != nil {
		log.Debugf("flush cancelled: %v", err)
		return false
	}

	store.ClearDirty()
	snapshot, err := store.Snapshot()
	if err != nil {
		store.MarkDirty()
		log.Errorf("persist error: failed to get snapshot: %v", err)
		return false
	}

	snapshot.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := repo.Save(ctx, &snapshot); err != nil {
		store.MarkDirty()
		log.Errorf("persist error: failed to save: %v", err)
		return false
	}

	store.SetLastUpdate(snapshot.Metadata.LastUpdate)
	log.Debug("state persisted to disk")
	return true
}
