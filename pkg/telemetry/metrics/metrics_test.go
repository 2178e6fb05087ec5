package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/interpose/pkg/config"
	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/recipe"
)

var (
	_ dispatch.Observer = (*Collector)(nil)
	_ recipe.Observer   = (*Collector)(nil)
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		Subsystem:              "dispatch",
		ResolveDurationBuckets: []float64{0.0001, 0.001, 0.01},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector.Registry() != registry {
		t.Error("Registry() is not the registry passed in")
	}

	defaults := &config.MetricsConfig{Enabled: true}
	NewCollector(defaults, nil)
	if defaults.Namespace != config.DefaultMetricsNamespace || len(defaults.ResolveDurationBuckets) == 0 {
		t.Errorf("defaults not applied: %+v", defaults)
	}
}

func TestCollector_CacheMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordCacheLookup(false)
	c.RecordCacheLookup(true)
	c.RecordCacheLookup(true)
	c.RecordResolution(dispatch.OutcomeResolved, 50*time.Microsecond)
	c.RecordResolution(dispatch.OutcomeUnsupported, 20*time.Microsecond)
	c.RecordCacheSize(7)

	if got := testutil.ToFloat64(c.cacheMetrics.lookupsTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.lookupsTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.resolutionsTotal.WithLabelValues(dispatch.OutcomeResolved)); got != 1 {
		t.Errorf("resolved = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.entries); got != 7 {
		t.Errorf("entries = %v, want 7", got)
	}
	if got := testutil.CollectAndCount(c.cacheMetrics.resolveDuration); got != 2 {
		t.Errorf("histogram series = %d, want 2", got)
	}

	c.RecordCacheClear("schedule", 7)
	if got := testutil.ToFloat64(c.cacheMetrics.clearsTotal.WithLabelValues("schedule")); got != 1 {
		t.Errorf("clears = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.clearedEntriesTotal); got != 7 {
		t.Errorf("cleared entries = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.entries); got != 0 {
		t.Errorf("entries after clear = %v, want 0", got)
	}
}

func TestCollector_ObservesDispatchCache(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	cache := dispatch.NewCache(c)

	type Named interface{ Name() string }
	desc := dispatch.MustDescriptor(dispatch.TypeOf[Named](), "Name")
	key := dispatch.Key{Descriptor: desc}
	resolve := func() (*dispatch.Chain, error) {
		return dispatch.Resolve(desc, dispatch.NewRuleSet(), struct{}{})
	}

	for i := 0; i < 3; i++ {
		if _, err := cache.GetOrResolve(key, resolve); err != nil {
			t.Fatalf("GetOrResolve() error = %v", err)
		}
	}

	if got := testutil.ToFloat64(c.cacheMetrics.lookupsTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.resolutionsTotal.WithLabelValues(dispatch.OutcomeUnsupported)); got != 1 {
		t.Errorf("unsupported resolutions = %v, want 1", got)
	}
}

func TestCollector_RecordVerification(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordVerification("*state.Bucket", false, nil)
	c.RecordVerification("*state.Bucket", true, nil)
	c.RecordVerification("string", false, errors.New("missing contract"))

	if got := testutil.ToFloat64(c.recipeMetrics.verificationsTotal.WithLabelValues("*state.Bucket", "ok")); got != 1 {
		t.Errorf("ok verifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.recipeMetrics.verificationsTotal.WithLabelValues("string", "failed")); got != 1 {
		t.Errorf("failed verifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.recipeMetrics.cacheHitsTotal); got != 1 {
		t.Errorf("verification cache hits = %v, want 1", got)
	}
}

func TestCollector_RecordManifestReload(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordManifestReload(nil, 3)
	c.RecordManifestReload(errors.New("bad yaml"), 0)

	if got := testutil.ToFloat64(c.manifestMetrics.reloadsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("successful reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.manifestMetrics.reloadsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.manifestMetrics.recipes); got != 3 {
		t.Errorf("recipes = %v, want 3 after a failed reload", got)
	}
	if got := testutil.ToFloat64(c.manifestMetrics.lastReload); got <= 0 {
		t.Errorf("last reload timestamp = %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)

	c.RecordCacheLookup(true)
	c.RecordCacheSize(4)
	c.RecordVerification("x", false, nil)
	c.RecordManifestReload(nil, 2)

	if got := testutil.ToFloat64(c.cacheMetrics.lookupsTotal.WithLabelValues("hit")); got != 0 {
		t.Errorf("hits recorded while disabled: %v", got)
	}
	if got := testutil.ToFloat64(c.manifestMetrics.recipes); got != 0 {
		t.Errorf("recipes recorded while disabled: %v", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	tests := []struct {
		label string
		want  bool
	}{
		{"a", true},
		{"b", true},
		{"a", true},
		{"c", false},
	}
	for _, tt := range tests {
		if got := cl.Allow(tt.label); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}

	c := NewCollector(testConfig(), nil)
	c.cardinalityLimiter = NewCardinalityLimiter(1)
	c.RecordVerification("first", false, nil)
	c.RecordVerification("second", false, nil)
	if got := testutil.ToFloat64(c.recipeMetrics.verificationsTotal.WithLabelValues("other", "ok")); got != 1 {
		t.Errorf("overflow verifications = %v, want 1 under other", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.RecordCacheLookup(true)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `test_dispatch_cache_lookups_total{result="hit"} 1`) {
		t.Errorf("scrape output missing lookup counter:\n%s", body)
	}
}
