package recording

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
)

func plot(name string) display.Plot {
	return display.Plot{
		Display: name,
		Kind:    "time",
		Series:  []display.Series{{Channel: 0, X: []float64{-0.01, 0}, Y: []float64{1, 2}}},
		Y:       display.Bounds{Min: 0, Max: 3},
	}
}

func readLines(t *testing.T, path string) []display.Plot {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	switch CompressionFor(path) {
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case CompressionGzip:
		gr, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}

	var plots []display.Plot
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var p display.Plot
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &p))
		plots = append(plots, p)
	}
	require.NoError(t, scanner.Err())
	return plots
}

func TestStopWithoutSession(t *testing.T) {
	rec := New(Options{Dir: t.TempDir()}, nil)

	_, err := rec.Stop()
	assert.True(t, errors.Is(err, ErrNotRecording))
	assert.Equal(t, "no active recording", err.Error())
}

func TestCaptureIgnoredWhenIdle(t *testing.T) {
	rec := New(Options{Dir: t.TempDir()}, nil)
	rec.Capture(plot("a"))

	_, active := rec.Active()
	assert.False(t, active)
}

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"plain", "run.jsonl"},
		{"gzip", "run.jsonl.gz"},
		{"zstd", "run.jsonl.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rec := New(Options{Dir: dir}, nil)

			path := filepath.Join(dir, tt.file)
			session, err := rec.Start(path)
			require.NoError(t, err)
			assert.Equal(t, path, session.Path)

			rec.Capture(plot("raw-time"))
			rec.Capture(plot("filtered-time"))

			summary, err := rec.Stop()
			require.NoError(t, err)
			assert.Equal(t, uint64(2), summary.Plots)
			assert.Equal(t, uint64(0), summary.Dropped)
			assert.Greater(t, summary.Bytes, int64(0))

			plots := readLines(t, path)
			require.Len(t, plots, 2)
			assert.Equal(t, "raw-time", plots[0].Display)
			assert.Equal(t, []float64{1, 2}, plots[1].Series[0].Y)
		})
	}
}

func TestGeneratedPath(t *testing.T) {
	dir := t.TempDir()
	rec := New(Options{Dir: dir}, nil)

	session, err := rec.Start("")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(session.Path))
	assert.True(t, strings.HasSuffix(session.Path, ".jsonl.zst"))
	assert.True(t, strings.HasPrefix(filepath.Base(session.Path), session.ID))

	_, err = rec.Start("")
	assert.True(t, errors.Is(err, ErrAlreadyRecording))

	_, err = rec.Stop()
	require.NoError(t, err)
}

// blockingEncoder holds every Encode until released
type blockingEncoder struct {
	release chan struct{}
}

func (e *blockingEncoder) Encode(display.Plot) error {
	<-e.release
	return nil
}

func (e *blockingEncoder) Close() error { return nil }

func TestCaptureDropsWhenQueueFull(t *testing.T) {
	enc := &blockingEncoder{release: make(chan struct{})}
	rec := New(Options{
		Dir:       t.TempDir(),
		QueueSize: 1,
		Encoder: func(io.Writer, string) (Encoder, error) {
			return enc, nil
		},
	}, nil)

	_, err := rec.Start("")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		rec.Capture(plot("a"))
	}
	close(enc.release)

	summary, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), summary.Plots+summary.Dropped)
	assert.GreaterOrEqual(t, summary.Dropped, uint64(8))
}
