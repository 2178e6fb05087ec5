// Package health serves liveness, readiness and version probes for the
// interpose admin server.
//
// Components register readiness checks by name:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("manifest", manager.Ready)
//	checker.RegisterCheck("state", store.Ping)
//	health.Register(mux, checker, health.NewVersionInfo(version, commit, date))
//
// /readyz answers 503 while any check fails, so orchestrators stop routing to
// an instance whose manifest failed to load.
package health
