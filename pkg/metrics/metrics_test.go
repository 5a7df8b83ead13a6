package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_ReusesExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := Register(reg, MetricsAccessDecision, "")
	require.NoError(t, err)
	second, err := Register(reg, MetricsAccessDecision, "")
	require.NoError(t, err)
	require.Same(t, first.(*prometheus.CounterVec), second.(*prometheus.CounterVec))

	first.(*prometheus.CounterVec).WithLabelValues("clash", "clash_allowed").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(second.(*prometheus.CounterVec).WithLabelValues("clash", "clash_allowed")))
}

func TestRegister_UnknownType(t *testing.T) {
	_, err := Register(prometheus.NewRegistry(), &Metric{Name: "x", Type: "nope"}, "")
	require.Error(t, err)
}

func TestPrometheus_MiddlewareAndEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	r := gin.New()
	p := NewPrometheus(NewPrometheusOptions{
		Registerer: reg,
		ReqCntURLLabelMappingFn: func(c *gin.Context) string {
			return c.FullPath()
		},
	})
	p.Use(r)
	r.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), `req_total{code="200",method="GET",ref="",url="/ping/:id"} 1`))
}

func TestComputeApproximateRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://h/a", strings.NewReader("abcd"))
	req.Header.Set("X", "y")
	// path 2 + method 4 + proto 8 + header 2 + host 1 + body 4
	require.Equal(t, 21, computeApproximateRequestSize(req))
}
