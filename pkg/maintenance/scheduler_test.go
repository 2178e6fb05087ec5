package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/state/sqlstate"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "daily", schedule: "0 3 * * *", wantRunning: true},
		{name: "descriptor", schedule: "@every 1h", wantRunning: true},
		{name: "empty schedule", schedule: ""},
		{name: "invalid schedule", schedule: "whenever", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.schedule, discard)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				next := s.NextRun()
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
				if err := s.Start(ctx); err == nil {
					t.Error("second Start() error = nil")
				}
			}
			s.Stop()
			if s.IsRunning() {
				t.Error("IsRunning() after Stop = true")
			}
			if s.NextRun() != nil {
				t.Error("NextRun() after Stop != nil")
			}
		})
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	s := NewScheduler("@every 1h", discard)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler("@every 1s", discard, Job{
		Name: "count",
		Run: func(context.Context) (int, error) {
			runs.Add(1)
			return 1, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job did not run within 5s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestScheduler_RunOnceContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	var after atomic.Bool
	s := NewScheduler("", discard,
		Job{Name: "fails", Run: func(context.Context) (int, error) { return 0, boom }},
		Job{Name: "after", Run: func(context.Context) (int, error) { after.Store(true); return 0, nil }},
	)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("RunOnce() error = %v, want boom", err)
	}
	if !after.Load() {
		t.Error("job after the failing one did not run")
	}
}

type clearRecorder struct {
	source  string
	removed int
}

func (r *clearRecorder) RecordCacheClear(source string, removed int) {
	r.source = source
	r.removed = removed
}

type typeCache struct{ cleared int }

func (c *typeCache) ClearTypeCache() { c.cleared++ }

type Greeter interface{ Greet() string }

func TestJobs_ClearCaches(t *testing.T) {
	cache := dispatch.NewCache(nil)
	desc := dispatch.MustDescriptor(dispatch.TypeOf[Greeter](), "Greet")
	if _, err := cache.GetOrResolve(dispatch.Key{Descriptor: desc}, func() (*dispatch.Chain, error) {
		return dispatch.Resolve(desc, dispatch.NewRuleSet(), struct{}{})
	}); err != nil {
		t.Fatalf("GetOrResolve() error = %v", err)
	}

	rec := &clearRecorder{}
	tc := &typeCache{}
	s := NewScheduler("", discard, ClearDispatchCache(cache, rec), ClearTypeCache(tc))
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, want 0", cache.Len())
	}
	if rec.source != ClearSource || rec.removed != 1 {
		t.Errorf("recorded clear = %s/%d, want %s/1", rec.source, rec.removed, ClearSource)
	}
	if tc.cleared != 1 {
		t.Errorf("ClearTypeCache calls = %d, want 1", tc.cleared)
	}
}

func TestJobs_State(t *testing.T) {
	store, err := sqlstate.Open(sqlstate.DefaultConfig(filepath.Join(t.TempDir(), "state.db")))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "o", "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := CheckpointState(store).Run(ctx); err != nil {
		t.Errorf("checkpoint error = %v", err)
	}

	n, err := PruneState(store, time.Hour).Run(ctx)
	if err != nil || n != 0 {
		t.Errorf("prune with 1h retention = %d, %v; want 0, nil", n, err)
	}
	n, err = PruneState(store, -time.Minute).Run(ctx)
	if err != nil || n != 1 {
		t.Errorf("prune of everything = %d, %v; want 1, nil", n, err)
	}
}
