package maintenance

import (
	"context"
	"time"

	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/state/sqlstate"
)

// ClearSource labels cache clears made by the scheduler.
const ClearSource = "schedule"

// ClearObserver receives cache clear events. metrics.Collector implements it.
type ClearObserver interface {
	RecordCacheClear(source string, removed int)
}

// TypeCacheClearer forgets verified state types.
type TypeCacheClearer interface {
	ClearTypeCache()
}

// ClearDispatchCache empties the shared dispatch cache. Interned
// fingerprints survive, so live dispatchers keep working and re-resolve on
// their next call. observer may be nil.
func ClearDispatchCache(cache *dispatch.Cache, observer ClearObserver) Job {
	return Job{
		Name: "clear-dispatch-cache",
		Run: func(context.Context) (int, error) {
			removed := cache.Clear()
			if observer != nil {
				observer.RecordCacheClear(ClearSource, removed)
			}
			return removed, nil
		},
	}
}

// ClearTypeCache clears verified state types and descriptor caches.
func ClearTypeCache(c TypeCacheClearer) Job {
	return Job{
		Name: "clear-type-cache",
		Run: func(context.Context) (int, error) {
			c.ClearTypeCache()
			return 0, nil
		},
	}
}

// CheckpointState runs a WAL checkpoint on the state store.
func CheckpointState(store *sqlstate.Store) Job {
	return Job{
		Name: "checkpoint-state",
		Run: func(ctx context.Context) (int, error) {
			return 0, store.Checkpoint(ctx)
		},
	}
}

// PruneState removes properties not written within retention.
func PruneState(store *sqlstate.Store, retention time.Duration) Job {
	return Job{
		Name: "prune-state",
		Run: func(ctx context.Context) (int, error) {
			return store.Cleanup(ctx, time.Now().Add(-retention))
		},
	}
}
