// Package telemetry provides in-process metrics for the server:
// counters, gauges and histograms with Prometheus text exposition at
// GET /metrics. Deliberately dependency-free; the text format is all a
// scrape needs.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds the telemetry provider configuration.
type Config struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	Enabled        *bool  `json:"enabled"` // nil = use default (true)
}

// on returns whether metrics are enabled (defaults to true).
func (c *Config) on() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "medicore-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for Config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// ---------------------------------------------------------------------------
// Histogram — Prometheus-style histogram with buckets
// ---------------------------------------------------------------------------

// histogram is a thread-safe histogram with configurable bucket boundaries.
// Bucket counts are non-cumulative in storage; cumulative counts are computed
// at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64 // one per boundary, non-cumulative
	count        int64
	sum          uint64     // stored as math.Float64bits for atomic add
	mu           sync.Mutex // protects bucketCounts
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			h.mu.Unlock()
			return
		}
	}
	// Value exceeds all boundaries — counted in +Inf (handled at export).
	h.mu.Unlock()
}

// Count returns the total number of observations.
func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

// Sum returns the total sum of all observations.
func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

// cumulativeBuckets returns cumulative bucket counts for Prometheus export.
func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	cum := make([]int64, len(raw))
	var running int64
	for i, c := range raw {
		running += c
		cum[i] = running
	}
	return cum
}

// atomicAddFloat64 performs an atomic add on a uint64 that stores a float64
// using CAS.
func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Labeled histogram — keyed by (method, route, status_code)
// ---------------------------------------------------------------------------

type labeledHistogramStore struct {
	mu    sync.RWMutex
	items map[string]*histogram
}

func newLabeledHistogramStore() *labeledHistogramStore {
	return &labeledHistogramStore{items: make(map[string]*histogram)}
}

func (s *labeledHistogramStore) getOrCreate(key string, boundaries []float64) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	h, ok = s.items[key]
	if !ok {
		h = newHistogram(boundaries)
		s.items[key] = h
	}
	s.mu.Unlock()
	return h
}

func (s *labeledHistogramStore) snapshot() map[string]*histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]*histogram, len(s.items))
	for k, v := range s.items {
		cp[k] = v
	}
	return cp
}

// LabelsKey builds the map key for a labeled histogram. Exported so tests
// can construct the same key.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

// ---------------------------------------------------------------------------
// Counter store — keyed by (metricName, label1, label2, ...)
// ---------------------------------------------------------------------------

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{items: make(map[string]*int64)}
}

func (s *counterStore) inc(key string) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, 1)
		return
	}
	s.mu.Lock()
	p, ok = s.items[key]
	if !ok {
		v := int64(1)
		s.items[key] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.AddInt64(p, 1)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

// ---------------------------------------------------------------------------
// Gauge store — keyed by name
// ---------------------------------------------------------------------------

type gaugeStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newGaugeStore() *gaugeStore {
	return &gaugeStore{items: make(map[string]*int64)}
}

func (s *gaugeStore) set(name string, val int64) {
	s.mu.RLock()
	p, ok := s.items[name]
	s.mu.RUnlock()
	if ok {
		atomic.StoreInt64(p, val)
		return
	}
	s.mu.Lock()
	p, ok = s.items[name]
	if !ok {
		v := val
		s.items[name] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.StoreInt64(p, val)
}

func (s *gaugeStore) add(name string, delta int64) {
	s.mu.RLock()
	p, ok := s.items[name]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, delta)
		return
	}
	s.mu.Lock()
	p, ok = s.items[name]
	if !ok {
		v := delta
		s.items[name] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.AddInt64(p, delta)
}

func (s *gaugeStore) get(name string) int64 {
	s.mu.RLock()
	p, ok := s.items[name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

// ---------------------------------------------------------------------------
// Provider — the main entry point
// ---------------------------------------------------------------------------

// defaultDurationBuckets are the histogram bucket boundaries (in seconds)
// used for HTTP request duration.
var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// defaultSizeBuckets are the histogram bucket boundaries (in bytes)
// used for HTTP request/response size.
var defaultSizeBuckets = []float64{
	100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
}

// Provider holds all metric state.
type Provider struct {
	cfg Config

	histograms        map[string]*histogram
	labeledHistograms map[string]*labeledHistogramStore
	histMu            sync.RWMutex

	counters *counterStore
	gauges   *gaugeStore
}

// New creates and initialises the telemetry provider.
func New(cfg Config) *Provider {
	cfg.applyDefaults()

	return &Provider{
		cfg:               cfg,
		histograms:        make(map[string]*histogram),
		labeledHistograms: make(map[string]*labeledHistogramStore),
		counters:          newCounterStore(),
		gauges:            newGaugeStore(),
	}
}

// ---------------------------------------------------------------------------
// Metrics accessors (for tests and introspection)
// ---------------------------------------------------------------------------

// GetHistogram returns the named histogram, or nil if it does not exist.
func (p *Provider) GetHistogram(name string) *histogram {
	p.histMu.RLock()
	defer p.histMu.RUnlock()
	return p.histograms[name]
}

func (p *Provider) getOrCreateHistogram(name string, boundaries []float64) *histogram {
	p.histMu.RLock()
	h, ok := p.histograms[name]
	p.histMu.RUnlock()
	if ok {
		return h
	}
	p.histMu.Lock()
	h, ok = p.histograms[name]
	if !ok {
		h = newHistogram(boundaries)
		p.histograms[name] = h
	}
	p.histMu.Unlock()
	return h
}

func (p *Provider) getOrCreateLabeledStore(name string) *labeledHistogramStore {
	p.histMu.RLock()
	s, ok := p.labeledHistograms[name]
	p.histMu.RUnlock()
	if ok {
		return s
	}
	p.histMu.Lock()
	s, ok = p.labeledHistograms[name]
	if !ok {
		s = newLabeledHistogramStore()
		p.labeledHistograms[name] = s
	}
	p.histMu.Unlock()
	return s
}

// GetLabeledHistogram returns a specific labeled histogram, or nil.
func (p *Provider) GetLabeledHistogram(name, key string) *histogram {
	p.histMu.RLock()
	s, ok := p.labeledHistograms[name]
	p.histMu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.RLock()
	h := s.items[key]
	s.mu.RUnlock()
	return h
}

// GetGauge returns the current value of the named gauge.
func (p *Provider) GetGauge(name string) int64 {
	return p.gauges.get(name)
}

// GetCounter returns the current value of a counter with the given name
// and label values.
func (p *Provider) GetCounter(name string, labels ...string) int64 {
	key := name
	for _, l := range labels {
		key += "|" + l
	}
	return p.counters.get(key)
}

// ---------------------------------------------------------------------------
// Auth event counters
// ---------------------------------------------------------------------------

// CountLogin increments the login counter for one outcome: success,
// failure, locked or two_factor_required.
func (p *Provider) CountLogin(result string) {
	p.counters.inc("auth.logins|" + result)
}

// CountLockout increments the counter of accounts transitioned to
// locked.
func (p *Provider) CountLockout() {
	p.counters.inc("auth.lockouts")
}

// CountRateLimited increments the rejected-request counter for a
// limiter scope ("auth" or "api").
func (p *Provider) CountRateLimited(scope string) {
	p.counters.inc("auth.rate_limited|" + scope)
}

// CountRevocation increments the counter of tokens revoked before
// expiry.
func (p *Provider) CountRevocation() {
	p.counters.inc("auth.revocations")
}

// ---------------------------------------------------------------------------
// Health gauges
// ---------------------------------------------------------------------------

// HealthMetricsRecorder provides methods to update health-related gauges.
type HealthMetricsRecorder struct {
	p *Provider
}

// HealthMetrics returns a recorder for health-related metrics.
func (p *Provider) HealthMetrics() *HealthMetricsRecorder {
	return &HealthMetricsRecorder{p: p}
}

// SetDBPoolActive sets the db.pool.active_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolActive(n int64) {
	h.p.gauges.set("db.pool.active_connections", n)
}

// SetDBPoolIdle sets the db.pool.idle_connections gauge.
func (h *HealthMetricsRecorder) SetDBPoolIdle(n int64) {
	h.p.gauges.set("db.pool.idle_connections", n)
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.on() {
				return next(c)
			}

			p.gauges.add("http.server.active_requests", 1)

			start := time.Now()
			req := c.Request()

			err := next(c)

			duration := time.Since(start).Seconds()
			resp := c.Response()
			statusCode := resp.Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					statusCode = httpErr.Code
				} else {
					statusCode = http.StatusInternalServerError
				}
			}

			p.gauges.add("http.server.active_requests", -1)

			// Route pattern, not the actual path, to bound cardinality.
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			statusStr := fmt.Sprintf("%d", statusCode)

			durationHist := p.getOrCreateHistogram("http.server.request.duration", defaultDurationBuckets)
			durationHist.Observe(duration)

			store := p.getOrCreateLabeledStore("http.server.request.duration")
			key := LabelsKey(req.Method, route, statusStr)
			labeled := store.getOrCreate(key, defaultDurationBuckets)
			labeled.Observe(duration)

			if req.ContentLength > 0 {
				reqSizeHist := p.getOrCreateHistogram("http.server.request.size", defaultSizeBuckets)
				reqSizeHist.Observe(float64(req.ContentLength))
			}

			respSize := resp.Size
			if respSize > 0 {
				respSizeHist := p.getOrCreateHistogram("http.server.response.size", defaultSizeBuckets)
				respSizeHist.Observe(float64(respSize))
			}

			return err
		}
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler returns an Echo handler that serves metrics in
// Prometheus text exposition format at /metrics.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		// --- build info ---
		b.WriteString("# HELP medicore_build_info Build metadata as labels, value fixed at 1.\n")
		b.WriteString("# TYPE medicore_build_info gauge\n")
		fmt.Fprintf(&b, "medicore_build_info{service=%q,version=%q,environment=%q} 1\n\n",
			p.cfg.ServiceName, p.cfg.ServiceVersion, p.cfg.Environment)

		p.histMu.RLock()
		durationHist := p.histograms["http.server.request.duration"]
		durationStore := p.labeledHistograms["http.server.request.duration"]
		reqSizeHist := p.histograms["http.server.request.size"]
		respSizeHist := p.histograms["http.server.response.size"]
		p.histMu.RUnlock()

		// --- http_server_request_duration_seconds (histogram) ---
		writeHistogramMetric(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", "histogram",
			durationHist, durationStore, defaultDurationBuckets)

		// --- http_server_active_requests (gauge) ---
		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n", p.gauges.get("http.server.active_requests"))
		b.WriteByte('\n')

		// --- http_server_request_size_bytes (histogram) ---
		writeSimpleHistogram(&b, "http_server_request_size_bytes",
			"Size of HTTP request bodies in bytes.", reqSizeHist, defaultSizeBuckets)

		// --- http_server_response_size_bytes (histogram) ---
		writeSimpleHistogram(&b, "http_server_response_size_bytes",
			"Size of HTTP response bodies in bytes.", respSizeHist, defaultSizeBuckets)

		// --- auth counters ---
		counters := p.counters.snapshot()

		writeLabeledCounter(&b, "auth_logins_total",
			"Login attempts by result.", "auth.logins", "result", counters)
		writeLabeledCounter(&b, "auth_rate_limited_total",
			"Requests rejected by the rate limiter by scope.", "auth.rate_limited", "scope", counters)
		writePlainCounter(&b, "auth_lockouts_total",
			"Accounts transitioned to locked.", counters["auth.lockouts"])
		writePlainCounter(&b, "auth_revocations_total",
			"Tokens revoked before expiry.", counters["auth.revocations"])

		// --- health gauges ---
		healthGauges := []struct {
			promName string
			name     string
			help     string
		}{
			{"db_pool_active_connections", "db.pool.active_connections", "Number of active database pool connections."},
			{"db_pool_idle_connections", "db.pool.idle_connections", "Number of idle database pool connections."},
		}
		for _, g := range healthGauges {
			val := p.gauges.get(g.name)
			fmt.Fprintf(&b, "# HELP %s %s\n", g.promName, g.help)
			fmt.Fprintf(&b, "# TYPE %s gauge\n", g.promName)
			fmt.Fprintf(&b, "%s %d\n", g.promName, val)
			b.WriteByte('\n')
		}

		return c.String(http.StatusOK, b.String())
	}
}

// ---------------------------------------------------------------------------
// Prometheus format helpers
// ---------------------------------------------------------------------------

func writeLabeledCounter(b *strings.Builder, promName, help, name, labelName string, snap map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", promName, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", promName)
	prefix := name + "|"
	for key, val := range snap {
		if strings.HasPrefix(key, prefix) {
			fmt.Fprintf(b, "%s{%s=%q} %d\n", promName, labelName, key[len(prefix):], val)
		}
	}
	b.WriteByte('\n')
}

func writePlainCounter(b *strings.Builder, promName, help string, val int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", promName, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", promName)
	fmt.Fprintf(b, "%s %d\n", promName, val)
	b.WriteByte('\n')
}

func writeHistogramMetric(b *strings.Builder, name, help, typ string,
	global *histogram, labeled *labeledHistogramStore, boundaries []float64) {

	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)

	if labeled != nil {
		snap := labeled.snapshot()
		for key, h := range snap {
			parts := strings.SplitN(key, "|", 3)
			if len(parts) != 3 {
				continue
			}
			method, route, status := parts[0], parts[1], parts[2]
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", method, route, status)
			writeSingleHistogram(b, name, labels, h, boundaries)
		}
	} else if global != nil {
		writeSingleHistogram(b, name, "", global, boundaries)
	}
	b.WriteByte('\n')
}

func writeSimpleHistogram(b *strings.Builder, name, help string,
	h *histogram, boundaries []float64) {

	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	if h != nil {
		writeSingleHistogram(b, name, "", h, boundaries)
	}
	b.WriteByte('\n')
}

func writeSingleHistogram(b *strings.Builder, name, labels string,
	h *histogram, boundaries []float64) {

	cum := h.cumulativeBuckets()
	total := h.Count()

	labelsPrefix := ""
	labelsSuffix := ""
	if labels != "" {
		labelsPrefix = labels + ","
		labelsSuffix = "{" + labels + "}"
	}

	for i, boundary := range boundaries {
		if labels != "" {
			fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", name, labelsPrefix, boundary, cum[i])
		} else {
			fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", name, boundary, cum[i])
		}
	}

	// +Inf bucket.
	if labels != "" {
		fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", name, labelsPrefix, total)
	} else {
		fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, total)
	}

	fmt.Fprintf(b, "%s_sum%s %g\n", name, labelsSuffix, h.Sum())
	fmt.Fprintf(b, "%s_count%s %d\n", name, labelsSuffix, total)
}
