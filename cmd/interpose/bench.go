package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/interpose"
)

var benchFlags struct {
	manifest    string
	recipe      string
	workers     int
	calls       int
	state       string
	metricsAddr string
	noProgress  bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark dispatch through a recipe",
	Long: `Drive concurrent calls through receivers built from a recipe and report
throughput and dispatch cache behavior.

Each worker owns one receiver over its own demo state and cycles through
the Person methods. All receivers share the runtime's dispatch cache, so
after warm-up nearly every call is a cache hit.

Examples:
  # Eight workers, ten thousand calls each
  interpose bench --manifest recipes.yaml --recipe person --workers 8 --calls 10000

  # Expose Prometheus metrics while the benchmark runs
  interpose bench --manifest recipes.yaml --recipe person --metrics-addr :9090`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.manifest, "manifest", "m", "", "manifest file (defaults to manifest.path from config)")
	benchCmd.Flags().StringVarP(&benchFlags.recipe, "recipe", "r", "", "recipe name (required)")
	benchCmd.Flags().IntVarP(&benchFlags.workers, "workers", "w", 4, "concurrent workers")
	benchCmd.Flags().IntVarP(&benchFlags.calls, "calls", "n", 10000, "calls per worker")
	benchCmd.Flags().StringVar(&benchFlags.state, "state", stateMemory, "demo state: memory, sql")
	benchCmd.Flags().StringVar(&benchFlags.metricsAddr, "metrics-addr", "", "serve /metrics on this address while running")
	benchCmd.Flags().BoolVar(&benchFlags.noProgress, "no-progress", false, "disable the progress bar")
	_ = benchCmd.MarkFlagRequired("recipe")
}

// benchOptions parameterizes one benchmark run.
type benchOptions struct {
	recipe  string
	workers int
	calls   int
	state   string
}

// benchResult is the output of the bench command.
type benchResult struct {
	Recipe         string        `json:"recipe"`
	Workers        int           `json:"workers"`
	Calls          int           `json:"calls"`
	Duration       time.Duration `json:"duration_ns"`
	CallsPerSecond float64       `json:"calls_per_second"`
	Hits           int64         `json:"cache_hits"`
	Misses         int64         `json:"cache_misses"`
	HitRatio       float64       `json:"cache_hit_ratio"`
	Entries        int           `json:"cache_entries"`
}

// Text renders the result for terminals.
func (b benchResult) Text() string {
	var s strings.Builder
	fmt.Fprintf(&s, "Recipe:        %s\n", b.Recipe)
	fmt.Fprintf(&s, "Workers:       %d\n", b.Workers)
	fmt.Fprintf(&s, "Calls:         %d\n", b.Calls)
	fmt.Fprintf(&s, "Duration:      %s\n", b.Duration.Round(time.Millisecond))
	fmt.Fprintf(&s, "Throughput:    %.0f calls/s\n", b.CallsPerSecond)
	fmt.Fprintf(&s, "Cache hits:    %d\n", b.Hits)
	fmt.Fprintf(&s, "Cache misses:  %d\n", b.Misses)
	fmt.Fprintf(&s, "Hit ratio:     %.4f\n", b.HitRatio)
	fmt.Fprintf(&s, "Cache entries: %d\n", b.Entries)
	return s.String()
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.workers < 1 || benchFlags.calls < 1 {
		return cli.NewConfigError("workers", "workers and calls must be positive", nil)
	}
	rt, err := newRuntime(benchFlags.manifest, nil)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	if benchFlags.metricsAddr != "" {
		srv := newAdminServer(benchFlags.metricsAddr, rt, false)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.Logger().Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	var progress io.Writer = cmd.ErrOrStderr()
	if benchFlags.noProgress {
		progress = io.Discard
	}
	result, err := bench(cmd.Context(), rt, benchOptions{
		recipe:  benchFlags.recipe,
		workers: benchFlags.workers,
		calls:   benchFlags.calls,
		state:   benchFlags.state,
	}, progress)
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	return printResult(cmd, result)
}

// bench runs opts.workers receivers concurrently, opts.calls calls each.
func bench(ctx context.Context, rt *interpose.Runtime, opts benchOptions, progressOut io.Writer) (benchResult, error) {
	if err := rt.LoadManifest(); err != nil {
		return benchResult{}, err
	}
	r, err := rt.Recipe(opts.recipe)
	if err != nil {
		return benchResult{}, err
	}

	receivers := make([]*personStub, opts.workers)
	for i := range receivers {
		st, err := demoState(rt, opts.state, fmt.Sprintf("bench-%d", i))
		if err != nil {
			return benchResult{}, err
		}
		if receivers[i], err = newPerson(rt, r, st); err != nil {
			return benchResult{}, err
		}
	}

	progress := cli.NewProgressReporter(progressOut, "calls")
	progress.Start(int64(opts.workers * opts.calls))
	before := rt.Cache().Stats()
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range receivers {
		g.Go(func() error {
			return drive(ctx, p, i, opts.calls, progress)
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	progress.Finish()
	if err != nil {
		return benchResult{}, err
	}

	after := rt.Cache().Stats()
	stats := after
	stats.Hits -= before.Hits
	stats.Misses -= before.Misses
	total := opts.workers * opts.calls
	return benchResult{
		Recipe:         r.Name(),
		Workers:        opts.workers,
		Calls:          total,
		Duration:       elapsed,
		CallsPerSecond: float64(total) / elapsed.Seconds(),
		Hits:           stats.Hits,
		Misses:         stats.Misses,
		HitRatio:       stats.HitRatio(),
		Entries:        after.Entries,
	}, nil
}

const progressBatch = 256

// drive cycles calls through p. Stub methods panic on dispatch errors; the
// panic is returned as the worker's error.
func drive(ctx context.Context, p *personStub, worker, calls int, progress *cli.SimpleProgress) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("worker %d: %w", worker, e)
				return
			}
			err = fmt.Errorf("worker %d: %v", worker, r)
		}
	}()

	pending := int64(0)
	for i := 0; i < calls; i++ {
		switch i % 4 {
		case 0:
			p.SetName(fmt.Sprintf("worker-%d", worker))
		case 1:
			_ = p.GetName()
		case 2:
			p.SetAge(i)
		case 3:
			_ = p.Greeting()
		}
		pending++
		if pending == progressBatch {
			progress.Add(pending)
			pending = 0
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	progress.Add(pending)
	return nil
}
