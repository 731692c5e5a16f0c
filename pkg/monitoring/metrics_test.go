package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mc := NewMetricsCollector("carto-grapher", "v1", "abc")

	r := gin.New()
	r.Use(mc.MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", mc.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if got := testutil.ToFloat64(mc.httpRequestsTotal.WithLabelValues("GET", "/ping", "200")); got != 1 {
		t.Fatalf("requests counter = %v, want 1", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "carto_grapher_service_info") {
		t.Fatalf("expected sanitized service metrics in output")
	}
}

func TestMetricsCollectorsAreIndependent(t *testing.T) {
	a := NewMetricsCollector("svc", "v1", "abc")
	b := NewMetricsCollector("svc", "v1", "abc")

	ca := a.NewCounter("lookups_total", "lookups", []string{"op"})
	_ = b.NewCounter("lookups_total", "lookups", []string{"op"})
	ca.WithLabelValues("x").Inc()

	if got := testutil.ToFloat64(ca.WithLabelValues("x")); got != 1 {
		t.Fatalf("counter = %v, want 1", got)
	}
}

func TestCreateCacheMetrics(t *testing.T) {
	mc := NewMetricsCollector("svc", "v1", "abc")
	events := mc.CreateCacheMetrics()
	events.WithLabelValues("region_json", "hit").Inc()
	if got := testutil.ToFloat64(events.WithLabelValues("region_json", "hit")); got != 1 {
		t.Fatalf("cache events = %v, want 1", got)
	}
}
