package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/monitoring"
)

// MetricsSummary provides high-level pipeline metrics
type MetricsSummary struct {
	Timestamp        time.Time                  `json:"timestamp"`
	Counters         monitoring.MetricsSnapshot `json:"counters"`
	FramesPerTick    float64                    `json:"frames_per_tick"`
	NoDataRate       float64                    `json:"no_data_rate"`
	StreamsConnected int                        `json:"streams_connected"`
}

// GetMetricsSummary returns derived metrics as JSON
func (h *Handlers) GetMetricsSummary(c *gin.Context) {
	snap := h.console.Metrics.Snapshot()

	summary := MetricsSummary{
		Timestamp:        time.Now(),
		Counters:         snap,
		StreamsConnected: h.console.Plots.Subscribers(),
	}
	if snap.AcquireTicks > 0 {
		summary.NoDataRate = float64(snap.NoDataTicks) / float64(snap.AcquireTicks)
		if data := snap.AcquireTicks - snap.NoDataTicks; data > 0 {
			summary.FramesPerTick = float64(snap.FramesAcquired) / float64(data)
		}
	}

	c.JSON(http.StatusOK, summary)
}
