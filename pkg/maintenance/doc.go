// Package maintenance runs periodic housekeeping on a cron schedule: clearing
// the dispatch cache so long-running processes release chains for receiver
// types they no longer see, and checkpointing and pruning the SQLite state
// store.
//
//	s := maintenance.NewScheduler("@every 1h", logger,
//		maintenance.ClearDispatchCache(cache, collector),
//		maintenance.CheckpointState(store),
//	)
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Stop()
package maintenance
