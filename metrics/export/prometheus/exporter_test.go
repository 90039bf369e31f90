package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	onboardAuth "github.com/MrEthical07/onboardAuth"
)

type fakeSource struct {
	snapshot onboardAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() onboardAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func scrape(t *testing.T, exp *PrometheusExporter) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, rec.Header().Get("Content-Type"), string(body)
}

func TestScrapeEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: onboardAuth.MetricsSnapshot{
			Counters:   map[onboardAuth.MetricID]uint64{},
			Histograms: map[onboardAuth.MetricID][]uint64{},
		},
	})

	_, _, body := scrape(t, exp)
	if strings.Contains(body, "onboardauth_") {
		t.Fatalf("expected no engine series for disabled metrics, got:\n%s", body)
	}
}

func TestScrapeIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: onboardAuth.MetricsSnapshot{
			Counters: map[onboardAuth.MetricID]uint64{
				onboardAuth.MetricLoginSuccess: 7,
			},
			Histograms: map[onboardAuth.MetricID][]uint64{
				onboardAuth.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	code, contentType, body := scrape(t, exp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(contentType, "text/plain") {
		t.Fatalf("expected text exposition, got %q", contentType)
	}
	for _, want := range []string{
		"onboardauth_login_success_total 7",
		"onboardauth_login_failure_total 0",
		`onboardauth_login_latency_seconds_bucket{le="0.005"} 1`,
		`onboardauth_login_latency_seconds_bucket{le="0.5"} 28`,
		`onboardauth_login_latency_seconds_bucket{le="+Inf"} 36`,
		"onboardauth_login_latency_seconds_count 36",
		"onboardauth_audit_dropped_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, body)
		}
	}
}

func TestExporterReadsLiveEngine(t *testing.T) {
	m := onboardAuth.NewMetrics(onboardAuth.MetricsConfig{Enabled: true})
	m.Inc(onboardAuth.MetricTokenIssued)
	m.Inc(onboardAuth.MetricTokenIssued)

	exp := NewPrometheusExporterFromSource(metricsOnly{m})
	_, _, body := scrape(t, exp)
	if !strings.Contains(body, "onboardauth_token_issued_total 2") {
		t.Fatalf("expected token counter, got:\n%s", body)
	}
}

type metricsOnly struct{ m *onboardAuth.Metrics }

func (s metricsOnly) MetricsSnapshot() onboardAuth.MetricsSnapshot { return s.m.Snapshot() }
func (s metricsOnly) AuditDropped() uint64                         { return 0 }

func BenchmarkScrape(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: onboardAuth.MetricsSnapshot{
			Counters: map[onboardAuth.MetricID]uint64{
				onboardAuth.MetricLoginSuccess:   1000,
				onboardAuth.MetricLoginFailure:   40,
				onboardAuth.MetricSessionCreated: 800,
				onboardAuth.MetricTokenIssued:    120,
			},
			Histograms: map[onboardAuth.MetricID][]uint64{
				onboardAuth.MetricLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	}
}
