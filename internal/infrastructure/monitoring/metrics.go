package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Acquisition metrics
	AcquireTicks   *prometheus.CounterVec
	FramesAcquired prometheus.Counter
	BufferDepth    prometheus.Gauge
	LostFrames     prometheus.Counter

	// Processing metrics
	ChainDuration  prometheus.Histogram
	ChainLength    prometheus.Gauge
	FilterFailures *prometheus.CounterVec

	// Render metrics
	TickDuration   prometheus.Histogram
	RenderDuration *prometheus.HistogramVec
	RenderFailures *prometheus.CounterVec

	// Registry metrics
	RegistrySize *prometheus.GaugeVec

	// Shell metrics
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Recording metrics
	PlotsRecorded prometheus.Counter
	PlotsDropped  prometheus.Counter
	RecordingOpen prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WSConnections   prometheus.Gauge
	WSMessages      *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the status command and JSON API
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the status views
type MetricsSnapshot struct {
	AcquireTicks   int64   `json:"acquire_ticks"`
	NoDataTicks    int64   `json:"no_data_ticks"`
	FramesAcquired int64   `json:"frames_acquired"`
	FramesLost     int64   `json:"frames_lost"`
	RenderTicks    int64   `json:"render_ticks"`
	FilterFailures int64   `json:"filter_failures"`
	RenderFailures int64   `json:"render_failures"`
	Commands       int64   `json:"commands"`
	HTTPRequests   int64   `json:"http_requests"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector backed by its own Prometheus registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		AcquireTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_acquire_ticks_total",
				Help: "Acquisition ticks by outcome",
			},
			[]string{"outcome"},
		),
		FramesAcquired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dsp_frames_acquired_total",
				Help: "Frames pushed into the sample buffer",
			},
		),
		BufferDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dsp_buffer_frames",
				Help: "Frames currently held by the sample buffer",
			},
		),
		LostFrames: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dsp_frames_lost_total",
				Help: "Frames evicted before the display manager read them",
			},
		),

		ChainDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dsp_chain_duration_seconds",
				Help:    "Filter chain application time per tick",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
			},
		),
		ChainLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dsp_chain_filters",
				Help: "Filters applied on the last tick",
			},
		),
		FilterFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_filter_failures_total",
				Help: "Filter failures that forced a raw pass-through",
			},
			[]string{"kind"},
		),

		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dsp_render_tick_duration_seconds",
				Help:    "Full render tick time",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsp_render_duration_seconds",
				Help:    "Display render time",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
			},
			[]string{"kind"},
		),
		RenderFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_render_failures_total",
				Help: "Display render failures",
			},
			[]string{"kind"},
		),

		RegistrySize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dsp_registry_entries",
				Help: "Registered components by kind",
			},
			[]string{"kind"},
		),

		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_shell_commands_total",
				Help: "Shell commands by name and status",
			},
			[]string{"command", "status"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsp_shell_command_duration_seconds",
				Help:    "Shell command execution time",
				Buckets: []float64{.0001, .001, .01, .1, .5, 1},
			},
			[]string{"command"},
		),

		PlotsRecorded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dsp_recording_plots_total",
				Help: "Plots written to recordings",
			},
		),
		PlotsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dsp_recording_plots_dropped_total",
				Help: "Plots dropped because the recording queue was full",
			},
		),
		RecordingOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dsp_recording_active",
				Help: "1 while a recording session is open",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dsp_ws_connections",
				Help: "Number of active WebSocket plot streams",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsp_ws_messages_total",
				Help: "WebSocket messages by outcome",
			},
			[]string{"outcome"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dsp_uptime_seconds",
			Help: "Console uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the Prometheus registry holding these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ============================================================================
// Acquisition
// ============================================================================

// RecordAcquire records one acquisition tick outcome: "data", "no_data" or "error"
func (m *Metrics) RecordAcquire(outcome string, frames int) {
	m.AcquireTicks.WithLabelValues(outcome).Inc()
	m.FramesAcquired.Add(float64(frames))

	m.mu.Lock()
	m.snapshot.AcquireTicks++
	if outcome == "no_data" {
		m.snapshot.NoDataTicks++
	}
	m.snapshot.FramesAcquired += int64(frames)
	m.mu.Unlock()
}

// SetBufferDepth sets the buffer occupancy
func (m *Metrics) SetBufferDepth(n int) {
	m.BufferDepth.Set(float64(n))
}

// ============================================================================
// Processing and rendering
// ============================================================================

// ObserveChain records a successful chain application
func (m *Metrics) ObserveChain(duration time.Duration, filters int) {
	m.ChainDuration.Observe(duration.Seconds())
	m.ChainLength.Set(float64(filters))
}

// FilterFailed counts a filter failure
func (m *Metrics) FilterFailed(kind string) {
	m.FilterFailures.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.FilterFailures++
	m.mu.Unlock()
}

// ObserveTick records a render tick
func (m *Metrics) ObserveTick(duration time.Duration, frames int) {
	m.TickDuration.Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.RenderTicks++
	m.mu.Unlock()
}

// ObserveRender records one display render
func (m *Metrics) ObserveRender(kind string, duration time.Duration) {
	m.RenderDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RenderFailed counts a display failure
func (m *Metrics) RenderFailed(kind string) {
	m.RenderFailures.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.RenderFailures++
	m.mu.Unlock()
}

// FramesLost counts frames the display manager never saw
func (m *Metrics) FramesLost(n uint64) {
	m.LostFrames.Add(float64(n))
	m.mu.Lock()
	m.snapshot.FramesLost += int64(n)
	m.mu.Unlock()
}

// SetRegistrySize sets the number of registered components of a kind
func (m *Metrics) SetRegistrySize(kind string, count int) {
	m.RegistrySize.WithLabelValues(kind).Set(float64(count))
}

// ============================================================================
// Shell and recording
// ============================================================================

// RecordCommand records a shell command outcome
func (m *Metrics) RecordCommand(command, status string, duration time.Duration) {
	m.Commands.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.Commands++
	m.mu.Unlock()
}

// PlotRecorded counts a plot written to a recording
func (m *Metrics) PlotRecorded() { m.PlotsRecorded.Inc() }

// PlotDropped counts a plot dropped by the recorder
func (m *Metrics) PlotDropped() { m.PlotsDropped.Inc() }

// RecordingActive flags whether a session is open
func (m *Metrics) RecordingActive(active bool) {
	if active {
		m.RecordingOpen.Set(1)
		return
	}
	m.RecordingOpen.Set(0)
}

// ============================================================================
// HTTP
// ============================================================================

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.HTTPRequests++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message outcome
func (m *Metrics) RecordWSMessage(outcome string) {
	m.WSMessages.WithLabelValues(outcome).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
