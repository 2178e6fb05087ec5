// Package interpose is the composition root for the interception engine.
//
// A Runtime owns the process-wide dispatch cache, the metrics collector, the
// tracer and the logger. It loads recipes from a manifest and builds
// receivers from hand-written stubs:
//
//	rt, err := interpose.New(cfg)
//	if err != nil {
//		return err
//	}
//	rt.RegisterContract("Person", dispatch.TypeOf[Person]())
//	if err := rt.LoadManifest(); err != nil {
//		return err
//	}
//	p, err := interpose.Create[personStub](rt, "person", state.NewBucket(nil))
//
// ClearDispatchCache and ClearTypeCache are the management surface. Both are
// safe while dispatchers are in use; the next call on each dispatcher
// re-resolves.
package interpose
