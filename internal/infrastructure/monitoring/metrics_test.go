package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolated(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.FilterFailed("script")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FilterFailures.WithLabelValues("script")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FilterFailures.WithLabelValues("script")))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordAcquire("data", 100)
	m.RecordAcquire("no_data", 0)
	m.FramesLost(7)
	m.RenderFailed("time")
	m.ObserveTick(time.Millisecond, 100)
	m.RecordCommand("help", "ok", time.Microsecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.AcquireTicks)
	assert.Equal(t, int64(1), snap.NoDataTicks)
	assert.Equal(t, int64(100), snap.FramesAcquired)
	assert.Equal(t, int64(7), snap.FramesLost)
	assert.Equal(t, int64(1), snap.RenderFailures)
	assert.Equal(t, int64(1), snap.RenderTicks)
	assert.Equal(t, int64(1), snap.Commands)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.LostFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("help", "ok")))
}

func TestRecordingGauge(t *testing.T) {
	m := NewMetrics()

	m.RecordingActive(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordingOpen))
	m.PlotRecorded()
	m.PlotDropped()
	m.RecordingActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RecordingOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlotsRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlotsDropped))
}

func TestRegistrySize(t *testing.T) {
	m := NewMetrics()
	m.SetRegistrySize("filter", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RegistrySize.WithLabelValues("filter")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/displays/:name", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/displays/raw-time", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/displays/:name", "200")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dsp_http_requests_total")
	assert.Contains(t, rec.Body.String(), "dsp_uptime_seconds")
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	timer := NewTimer(m, "status")
	timer.Stop("error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("status", "error")))

	var nilTimer *Timer
	assert.NotPanics(t, func() { nilTimer.Stop("ok") })
}
