package shell

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/pipeline"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/config"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

func newTestShell(t *testing.T) (*Shell, *pipeline.Console, *pipeline.Driver) {
	t.Helper()
	cfg := config.Default()
	cfg.Source.SampleRate = 200
	cfg.Source.Block = 20
	cfg.Pipeline.BufferCapacity = 500
	cfg.Recording.Dir = t.TempDir()

	console, err := pipeline.NewConsole(pipeline.Options{Config: cfg, Logger: zap.NewNop()})
	require.NoError(t, err)
	driver := pipeline.NewDriver(console)
	t.Cleanup(func() {
		_ = driver.Stop()
		_ = console.Close()
	})
	return New(console, driver, zap.NewNop()), console, driver
}

func exec(t *testing.T, s *Shell, line string) string {
	t.Helper()
	out, err := s.Execute(context.Background(), line)
	require.NoError(t, err, line)
	return out
}

func TestUnknownCommand(t *testing.T) {
	s, console, _ := newTestShell(t)
	before := console.Registry.Len()

	_, err := s.Execute(context.Background(), "frobnicate now")
	assert.ErrorIs(t, err, types.ErrUnknownCommand)
	assert.Equal(t, before, console.Registry.Len())
}

func TestEmptyLine(t *testing.T) {
	s, _, _ := newTestShell(t)
	out, err := s.Execute(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestFilterCommands(t *testing.T) {
	s, console, _ := newTestShell(t)

	out := exec(t, s, "list_filters")
	assert.Contains(t, out, "no filters")

	out = exec(t, s, "add_filter bandpass 1 40")
	assert.Contains(t, out, "added filter bandpass")
	assert.Contains(t, out, "position 0")

	out = exec(t, s, "add_filter gain 2")
	assert.Contains(t, out, "position 1")

	out = exec(t, s, "list_filters")
	assert.Contains(t, out, "bandpass")
	assert.Contains(t, out, "factor=2")
	assert.Equal(t, 2, console.Registry.Stats()[registry.KindFilter])

	out = exec(t, s, "set_filter gain factor=5")
	assert.Contains(t, out, "factor=5")
	assert.Contains(t, exec(t, s, "list_filters"), "factor=5")

	out = exec(t, s, "remove_filter bandpass")
	assert.Contains(t, out, "removed filter")
	assert.NotContains(t, exec(t, s, "list_filters"), "bandpass")

	_, err := s.Execute(context.Background(), "remove_filter bandpass")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestFilterCommandErrors(t *testing.T) {
	s, _, _ := newTestShell(t)

	tests := []struct {
		line string
		want error
	}{
		{line: "add_filter wavelet", want: types.ErrUnknownFilterKind},
		{line: "add_filter bandpass 40 1", want: types.ErrInvalidRange},
		{line: "set_filter missing factor=1", want: types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := s.Execute(context.Background(), tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.Execute(context.Background(), "add_filter")
	assert.ErrorContains(t, err, "usage")
}

func TestDisplayCommands(t *testing.T) {
	s, console, _ := newTestShell(t)

	out := exec(t, s, "add_display time feed=filtered title=extra")
	assert.Contains(t, out, "added display extra")
	assert.Contains(t, out, "filtered feed")

	out = exec(t, s, "list_displays")
	assert.Contains(t, out, "extra")
	assert.Contains(t, out, "filtered*")

	exec(t, s, "set_axis_limits raw-time y -1 1")
	assert.Contains(t, exec(t, s, "list_displays"), "[-1, 1]")

	_, err := s.Execute(context.Background(), "set_axis_limits raw-time y 5 1")
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	_, err = s.Execute(context.Background(), "set_axis_limits raw-time y 1")
	assert.ErrorContains(t, err, "usage")
	_, err = s.Execute(context.Background(), "set_axis_limits nowhere y 0 1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	exec(t, s, "autoscale raw-time y")
	d, _, err := console.Displays.Find("raw-time")
	require.NoError(t, err)
	assert.True(t, d.View().Y.Auto)

	exec(t, s, "hide_channel raw-time 1")
	assert.Equal(t, []int{1}, d.View().Hidden)
	exec(t, s, "show_channel raw-time 1")
	assert.Empty(t, d.View().Hidden)
	_, err = s.Execute(context.Background(), "hide_channel raw-time 9")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	exec(t, s, "set_feed raw-time filtered")
	for _, info := range console.Displays.List() {
		if info.Name == "raw-time" {
			assert.Equal(t, "filtered", string(info.Feed))
		}
	}

	exec(t, s, "remove_display extra")
	_, _, err = console.Displays.Find("extra")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Execute(context.Background(), "add_display waterfall")
	assert.ErrorIs(t, err, types.ErrUnknownDisplayKind)
}

func TestSetAxisNeedsHardware(t *testing.T) {
	s, _, _ := newTestShell(t)
	_, err := s.Execute(context.Background(), "set_axis y")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRecordingCommands(t *testing.T) {
	s, console, driver := newTestShell(t)

	assert.Equal(t, "no active recording", exec(t, s, "stop_recording"))
	assert.Equal(t, 1.0, testutil.ToFloat64(console.Metrics.Commands.WithLabelValues("stop_recording", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(console.Metrics.Commands.WithLabelValues("stop_recording", "error")))

	path := filepath.Join(t.TempDir(), "session.jsonl")
	out := exec(t, s, "start_recording "+path)
	assert.Contains(t, out, path)

	_, err := driver.Step(context.Background())
	require.NoError(t, err)

	assert.Contains(t, exec(t, s, "status"), "recording: "+path)

	out = exec(t, s, "stop_recording")
	assert.Contains(t, out, "4 plots")
}

func TestListAndStatus(t *testing.T) {
	s, _, _ := newTestShell(t)

	out := exec(t, s, "list")
	assert.Contains(t, out, "synthetic")
	assert.Contains(t, out, "raw-time")

	out = exec(t, s, "list source")
	assert.Contains(t, out, "synthetic")
	assert.NotContains(t, out, "raw-time")

	_, err := s.Execute(context.Background(), "list widgets")
	assert.Error(t, err)

	out = exec(t, s, "status")
	assert.Contains(t, out, "driver:    stopped")
	assert.Contains(t, out, "recording: off")
}

func TestHelp(t *testing.T) {
	s, _, _ := newTestShell(t)

	out := exec(t, s, "help")
	for _, name := range []string{"add_filter", "set_axis_limits", "start_recording", "quit"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, exec(t, s, "help set_feed"), "pin a display")

	_, err := s.Execute(context.Background(), "help nope")
	assert.ErrorIs(t, err, types.ErrUnknownCommand)
}

func TestPanicIsRecovered(t *testing.T) {
	s, _, _ := newTestShell(t)
	s.Register(Command{Name: "boom", Handler: func(context.Context, string) (string, error) {
		panic("kaboom")
	}})

	var err error
	assert.NotPanics(t, func() {
		_, err = s.Execute(context.Background(), "boom")
	})
	assert.ErrorContains(t, err, "kaboom")

	// the shell keeps working
	exec(t, s, "list_filters")
}

func TestQuit(t *testing.T) {
	s, _, _ := newTestShell(t)
	for _, line := range []string{"quit", "exit"} {
		_, err := s.Execute(context.Background(), line)
		assert.ErrorIs(t, err, ErrQuit)
	}
}

func TestRun(t *testing.T) {
	s, console, _ := newTestShell(t)

	in := strings.NewReader("add_filter gain 2\nbogus\nquit\nadd_filter gain 3\n")
	var out strings.Builder
	require.NoError(t, s.Run(context.Background(), in, &out))

	text := out.String()
	assert.Contains(t, text, Intro)
	assert.Contains(t, text, Prompt)
	assert.Contains(t, text, "added filter gain")
	assert.Contains(t, text, "error: unknown command")
	// nothing after quit runs
	assert.Equal(t, 1, console.Chain.Len())
}

func TestRunEOF(t *testing.T) {
	s, _, _ := newTestShell(t)
	var out strings.Builder
	assert.NoError(t, s.Run(context.Background(), strings.NewReader("list_filters\n"), &out))
	assert.Contains(t, out.String(), "no filters")
}

func TestRunCancelled(t *testing.T) {
	s, _, _ := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	var out strings.Builder
	assert.ErrorIs(t, s.Run(ctx, r, &out), context.Canceled)
}

func TestLogLevelCommand(t *testing.T) {
	s, _, _ := newTestShell(t)
	_, err := s.Execute(context.Background(), "log_level")
	assert.ErrorIs(t, err, types.ErrUnknownCommand)

	levels := logging.NewNop()
	s.WithLogLevel(levels)

	assert.Equal(t, "log level info", exec(t, s, "log_level"))
	assert.Equal(t, "log level debug", exec(t, s, "log_level debug"))
	assert.Equal(t, "debug", levels.Level())

	_, err = s.Execute(context.Background(), "log_level chatty")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
	assert.Equal(t, "debug", levels.Level())
}
