package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"

	"github.com/cysec-io/cysec/internal/app"
)

// RunMetrics implements "metrics": report the cache's (C7) own hit/miss/
// eviction/write-back counters, then print a Prometheus exposition
// snapshot of every OTel-backed counter, rather than serving a long-lived
// /metrics endpoint — matching the CLI's one-shot-per-invocation model.
// Since every command runs in its own process, the snapshot only ever
// reflects operations this same invocation performed; it exists to verify
// the exporter wiring and is not a substitute for a persistent scrape
// target in front of a long-running process.
func RunMetrics(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	cache, err := container.Cache()
	if err != nil {
		return err
	}
	stats := cache.Metrics()

	provider, err := container.MetricsProvider()
	if err != nil {
		return err
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	provider.Handler().ServeHTTP(rec, req)
	prometheusText := rec.Body.String()

	if jsonMode {
		return json.NewEncoder(w).Encode(map[string]any{
			"cache":      stats,
			"prometheus": prometheusText,
		})
	}
	fmt.Fprintf(w, "cache: hits=%d misses=%d evictions=%d writeback_failures=%d len=%d\n",
		stats.Hits, stats.Misses, stats.Evictions, stats.WritebackFailures, stats.Len)
	_, err = io.WriteString(w, prometheusText)
	return err
}
