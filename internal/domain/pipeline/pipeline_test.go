package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/buffer"
	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
	"github.com/GriffinCanCode/dspconsole/internal/domain/filter"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/config"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// scriptedSource returns constant frames until told to run dry
type scriptedSource struct {
	mu      sync.Mutex
	value   float64
	block   int
	dry     bool
	started bool
	stops   int
	next    time.Time
}

func newScriptedSource(value float64) *scriptedSource {
	return &scriptedSource{value: value, block: 10, next: time.Unix(0, 0)}
}

func (s *scriptedSource) Name() string        { return "scripted" }
func (s *scriptedSource) Channels() int       { return 2 }
func (s *scriptedSource) SampleRate() float64 { return 100 }

func (s *scriptedSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *scriptedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stops++
	return nil
}

func (s *scriptedSource) ReadTick(context.Context) ([]types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.dry {
		return nil, types.ErrNoData
	}
	frames := make([]types.Frame, s.block)
	for i := range frames {
		s.next = s.next.Add(10 * time.Millisecond)
		frames[i] = types.NewFrame(s.next, []float64{s.value, -s.value})
	}
	return frames, nil
}

func (s *scriptedSource) setDry(dry bool) {
	s.mu.Lock()
	s.dry = dry
	s.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.BufferCapacity = 1000
	cfg.Pipeline.AcquireInterval = 5 * time.Millisecond
	cfg.Pipeline.RenderInterval = 5 * time.Millisecond
	cfg.Pipeline.StopTimeout = time.Second
	cfg.Recording.Dir = ""
	return cfg
}

func newTestConsole(t *testing.T, src *scriptedSource, pipe *config.PipelineFile) *Console {
	t.Helper()
	c, err := NewConsole(Options{
		Config:   testConfig(),
		Pipeline: pipe,
		Source:   src,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewConsoleDefaultPipeline(t *testing.T) {
	c := newTestConsole(t, newScriptedSource(1), nil)

	infos := c.Displays.List()
	require.Len(t, infos, 4)
	feeds := make([]display.Feed, len(infos))
	for i, info := range infos {
		feeds[i] = info.Feed
	}
	assert.Equal(t, []display.Feed{display.FeedRaw, display.FeedRaw, display.FeedFiltered, display.FeedFiltered}, feeds)
	assert.Equal(t, "raw-time", infos[0].Name)

	stats := c.Registry.Stats()
	assert.Equal(t, 1, stats[registry.KindSource])
	assert.Equal(t, 0, stats[registry.KindFilter])
	assert.Equal(t, 4, stats[registry.KindDisplay])
	assert.Equal(t, 2, c.Ring.Channels())
}

func TestNewConsoleLoadsFilters(t *testing.T) {
	pipe := &config.PipelineFile{
		Filters: []config.FilterSpec{
			{Kind: "bandpass", Params: map[string]interface{}{"low": 1.0, "high": 20.0}},
			{Kind: "gain", Params: map[string]interface{}{"factor": 2.0}},
		},
		Displays: []config.DisplaySpec{{Kind: "time", Title: "only", Feed: "filtered"}},
	}
	c := newTestConsole(t, newScriptedSource(1), pipe)

	filters := c.Chain.List()
	require.Len(t, filters, 2)
	assert.Equal(t, "bandpass", filters[0].Name)
	assert.Equal(t, "gain", filters[1].Name)
	assert.Equal(t, display.FeedFiltered, c.Displays.List()[0].Feed)
}

func TestNewConsoleRejectsBadPipeline(t *testing.T) {
	tests := []struct {
		name string
		pipe *config.PipelineFile
		want error
	}{
		{
			name: "unknown filter",
			pipe: &config.PipelineFile{Filters: []config.FilterSpec{{Kind: "wavelet"}}},
			want: types.ErrUnknownFilterKind,
		},
		{
			name: "unknown display",
			pipe: &config.PipelineFile{Displays: []config.DisplaySpec{{Kind: "waterfall"}}},
			want: types.ErrUnknownDisplayKind,
		},
		{
			name: "bad split",
			pipe: &config.PipelineFile{Split: "middle"},
			want: types.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConsole(Options{
				Config:   testConfig(),
				Pipeline: tt.pipe,
				Source:   newScriptedSource(1),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewConsoleUnknownSourceKind(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Kind = "radio"
	_, err := NewConsole(Options{Config: cfg})
	assert.ErrorIs(t, err, types.ErrUnknownSourceKind)
}

func TestStepSynthetic(t *testing.T) {
	c, err := NewConsole(Options{Config: testConfig(), Logger: zap.NewNop()})
	require.NoError(t, err)
	defer c.Close()

	d := NewDriver(c)
	res, err := d.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.Config.Source.Block, res.Acquired)
	assert.Equal(t, c.Config.Source.Block, res.Render.Frames)
	assert.Equal(t, 4, res.Render.Rendered)
	assert.Equal(t, 0, res.Render.Failed)
	require.NoError(t, d.Stop())
}

func TestNoDataTicksLeaveSequenceUnchanged(t *testing.T) {
	src := newScriptedSource(1)
	c := newTestConsole(t, src, nil)
	d := NewDriver(c)

	_, err := d.Step(context.Background())
	require.NoError(t, err)
	before, err := c.Ring.LatestSequence()
	require.NoError(t, err)

	src.setDry(true)
	for i := 0; i < 10; i++ {
		res, err := d.Step(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.Acquired)
	}

	after, err := c.Ring.LatestSequence()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int64(10), c.Metrics.Snapshot().NoDataTicks)
}

func TestNoDataBeforeFirstFrame(t *testing.T) {
	src := newScriptedSource(1)
	src.setDry(true)
	c := newTestConsole(t, src, nil)

	_, err := NewDriver(c).Step(context.Background())
	require.NoError(t, err)
	_, err = c.Ring.LatestSequence()
	assert.ErrorIs(t, err, buffer.ErrEmpty)
}

func TestFilterAddedVisibleInNextTick(t *testing.T) {
	src := newScriptedSource(1)
	c := newTestConsole(t, src, nil)
	d := NewDriver(c)

	_, err := d.Step(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, lastY(t, c, "filtered-time"), 1e-9)

	_, err = c.Chain.Add("gain", filter.Params{"factor": "3"})
	require.NoError(t, err)

	_, err = d.Step(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, lastY(t, c, "filtered-time"), 1e-9)
	assert.InDelta(t, 1.0, lastY(t, c, "raw-time"), 1e-9)
}

func lastY(t *testing.T, c *Console, title string) float64 {
	t.Helper()
	d, _, err := c.Displays.Find(title)
	require.NoError(t, err)
	plot := d.Snapshot()
	require.NotEmpty(t, plot.Series)
	ys := plot.Series[0].Y
	require.NotEmpty(t, ys)
	return ys[len(ys)-1]
}

func TestDriverStartStop(t *testing.T) {
	src := newScriptedSource(1)
	c := newTestConsole(t, src, nil)
	d := NewDriver(c)

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, StateRunning, d.State())
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		return c.Metrics.Snapshot().RenderTicks > 0 && c.Ring.Len() > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Stop())
	assert.Equal(t, StateStopped, d.State())
	assert.Equal(t, 1, src.stops)

	// a second stop is a no-op
	require.NoError(t, d.Stop())
	assert.Equal(t, 1, src.stops)
}

// gatedDisplay holds every render until the gate opens
type gatedDisplay struct {
	display.Display
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedDisplay) Render(frames []types.Frame) error {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.Display.Render(frames)
}

func TestStartRefusedUntilTimedOutLoopsExit(t *testing.T) {
	src := newScriptedSource(1)
	c := newTestConsole(t, src, nil)
	d := NewDriver(c)
	d.stopTimeout = 20 * time.Millisecond

	inner, err := display.New("time", display.Config{Title: "gated"}, display.Env{SampleRate: 100, Channels: 2})
	require.NoError(t, err)
	gated := &gatedDisplay{Display: inner, entered: make(chan struct{}), gate: make(chan struct{})}
	_, err = c.Displays.Attach(gated, display.FeedRaw)
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background()))
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("render loop never reached the display")
	}

	assert.ErrorIs(t, d.Stop(), ErrStopTimeout)
	assert.Equal(t, StateStopped, d.State())
	assert.ErrorIs(t, d.Start(context.Background()), ErrStillStopping)

	close(gated.gate)
	require.Eventually(t, func() bool {
		err := d.Start(context.Background())
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, d.State())
	require.NoError(t, d.Stop())
}

func TestDriverSurvivesStalledSource(t *testing.T) {
	src := newScriptedSource(1)
	src.setDry(true)
	c := newTestConsole(t, src, nil)
	d := NewDriver(c)

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	// rendering keeps ticking with no data
	require.Eventually(t, func() bool {
		snap := c.Metrics.Snapshot()
		return snap.NoDataTicks > 3 && snap.RenderTicks > 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Ring.Len())
}

func TestStatus(t *testing.T) {
	c := newTestConsole(t, newScriptedSource(1), nil)
	_, err := NewDriver(c).Step(context.Background())
	require.NoError(t, err)

	st := c.Status()
	assert.Equal(t, "scripted", st.Source.Name)
	assert.Equal(t, c.SourceHandle, st.Source.Handle)
	assert.Equal(t, 10, st.Buffer.Size)
	assert.Len(t, st.Displays, 4)
	assert.Nil(t, st.Recording)
}

func TestSetSourceAxisUnsupported(t *testing.T) {
	c := newTestConsole(t, newScriptedSource(1), nil)
	err := c.SetSourceAxis("y")
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
}

func TestCloseFinalizesRecording(t *testing.T) {
	cfg := testConfig()
	cfg.Recording.Dir = t.TempDir()
	c, err := NewConsole(Options{Config: cfg, Source: newScriptedSource(1)})
	require.NoError(t, err)

	_, err = c.Recorder.Start("")
	require.NoError(t, err)
	_, err = NewDriver(c).Step(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, active := c.Recorder.Active()
	assert.False(t, active)
	assert.Zero(t, c.Registry.Len())
}
