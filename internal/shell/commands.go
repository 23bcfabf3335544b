package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
	"github.com/GriffinCanCode/dspconsole/internal/domain/recording"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

func (s *Shell) builtins() []Command {
	return []Command{
		// Filters
		{Name: "add_filter", Usage: "add_filter <kind> [params]", Help: "append a filter to the chain", Handler: s.addFilter},
		{Name: "remove_filter", Usage: "remove_filter <name|handle>", Help: "remove a filter from the chain", Handler: s.removeFilter},
		{Name: "list_filters", Usage: "list_filters", Help: "show the chain in application order", Handler: s.listFilters},
		{Name: "set_filter", Usage: "set_filter <name|handle> <params>", Help: "change parameters of a running filter", Handler: s.setFilter},

		// Displays
		{Name: "add_display", Usage: "add_display <kind> [feed=raw|filtered] [title=..] [window=..] [ymin=.. ymax=..]", Help: "attach a display", Handler: s.addDisplay},
		{Name: "remove_display", Usage: "remove_display <name|handle>", Help: "detach a display", Handler: s.removeDisplay},
		{Name: "list_displays", Usage: "list_displays", Help: "show displays with feed and limits", Handler: s.listDisplays},
		{Name: "set_axis_limits", Usage: "set_axis_limits <display> <x|y> <min> <max>", Help: "fix an axis range", Handler: s.setAxisLimits},
		{Name: "autoscale", Usage: "autoscale <display> <x|y>", Help: "return an axis to autoscale", Handler: s.autoscale},
		{Name: "show_channel", Usage: "show_channel <display> <ch>", Help: "show a channel", Handler: s.channelVisibility(true)},
		{Name: "hide_channel", Usage: "hide_channel <display> <ch>", Help: "hide a channel", Handler: s.channelVisibility(false)},
		{Name: "set_feed", Usage: "set_feed <display> <raw|filtered>", Help: "pin a display to a feed", Handler: s.setFeed},

		// Source, recording, inspection
		{Name: "set_axis", Usage: "set_axis <x|y|z>", Help: "switch the sensor axis of the hardware source", Handler: s.setAxis},
		{Name: "start_recording", Usage: "start_recording [path]", Help: "capture rendered plots to a file", Handler: s.startRecording},
		{Name: "stop_recording", Usage: "stop_recording", Help: "finish the active recording", Handler: s.stopRecording},
		{Name: "list", Usage: "list [source|filter|display]", Help: "show registered components", Handler: s.list},
		{Name: "status", Usage: "status", Help: "show pipeline status", Handler: s.status},
		{Name: "help", Usage: "help [command]", Help: "show commands", Handler: s.help},
		{Name: "quit", Usage: "quit", Help: "exit the console", Handler: quit},
		{Name: "exit", Usage: "exit", Help: "exit the console", Handler: quit},
	}
}

func quit(context.Context, string) (string, error) {
	return "", ErrQuit
}

func usage(format string, args ...interface{}) error {
	return fmt.Errorf("usage: "+format, args...)
}

// ============================================================================
// Filters
// ============================================================================

func (s *Shell) addFilter(_ context.Context, arg string) (string, error) {
	kind, rest, _ := strings.Cut(arg, " ")
	if kind == "" {
		return "", usage("add_filter <kind> [params]; kinds: %s", strings.Join(s.console.Chain.Factory().Kinds(), ", "))
	}
	params, err := s.console.Chain.Factory().Parse(kind, strings.TrimSpace(rest))
	if err != nil {
		return "", err
	}
	h, err := s.console.Chain.Add(kind, params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("added filter %s (%s) at position %d", kind, h, s.console.Chain.Len()-1), nil
}

func (s *Shell) removeFilter(_ context.Context, arg string) (string, error) {
	if arg == "" {
		return "", usage("remove_filter <name|handle>")
	}
	h, err := s.console.Chain.Remove(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("removed filter %s", h), nil
}

func (s *Shell) listFilters(context.Context, string) (string, error) {
	infos := s.console.Chain.List()
	if len(infos) == 0 {
		return "no filters (filtered feed equals raw feed)", nil
	}
	return table([]string{"POS", "NAME", "HANDLE", "PARAMS"}, len(infos), func(i int) []string {
		info := infos[i]
		return []string{strconv.Itoa(info.Position), info.Name, info.Handle.String(), info.Params.String()}
	}), nil
}

func (s *Shell) setFilter(_ context.Context, arg string) (string, error) {
	target, rest, _ := strings.Cut(arg, " ")
	rest = strings.TrimSpace(rest)
	if target == "" || rest == "" {
		return "", usage("set_filter <name|handle> <params>")
	}

	kind := ""
	for _, info := range s.console.Chain.List() {
		if info.Handle.String() == target {
			kind = info.Name
			break
		}
		if kind == "" && info.Name == target {
			kind = info.Name
		}
	}
	if kind == "" {
		return "", fmt.Errorf("filter %q: %w", target, types.ErrNotFound)
	}

	params, err := s.console.Chain.Factory().Parse(kind, rest)
	if err != nil {
		return "", err
	}
	if err := s.console.Chain.Configure(target, params); err != nil {
		return "", err
	}
	return fmt.Sprintf("configured filter %s: %s", target, params.String()), nil
}

// ============================================================================
// Displays
// ============================================================================

func (s *Shell) addDisplay(_ context.Context, arg string) (string, error) {
	kind, rest, _ := strings.Cut(arg, " ")
	if kind == "" {
		return "", usage("add_display <kind> [options]; kinds: %s", strings.Join(display.Kinds(), ", "))
	}
	cfg, err := display.ParseConfig(rest)
	if err != nil {
		return "", err
	}
	h, err := s.console.Displays.Add(kind, cfg)
	if err != nil {
		return "", err
	}
	for _, info := range s.console.Displays.List() {
		if info.Handle == h {
			return fmt.Sprintf("added display %s (%s, %s) on %s feed", info.Name, kind, h, info.Feed), nil
		}
	}
	return fmt.Sprintf("added display %s", h), nil
}

func (s *Shell) removeDisplay(_ context.Context, arg string) (string, error) {
	if arg == "" {
		return "", usage("remove_display <name|handle>")
	}
	h, err := s.console.Displays.Remove(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("removed display %s", h), nil
}

func (s *Shell) listDisplays(context.Context, string) (string, error) {
	infos := s.console.Displays.List()
	if len(infos) == 0 {
		return "no displays", nil
	}
	return table([]string{"NAME", "KIND", "FEED", "X", "Y", "HANDLE"}, len(infos), func(i int) []string {
		info := infos[i]
		feed := string(info.Feed)
		if info.Explicit {
			feed += "*"
		}
		return []string{info.Name, info.Kind, feed, formatLimits(info.View.X), formatLimits(info.View.Y), info.Handle.String()}
	}), nil
}

func formatLimits(l display.Limits) string {
	if l.Auto {
		return "auto"
	}
	return fmt.Sprintf("[%g, %g]", l.Min, l.Max)
}

func (s *Shell) setAxisLimits(_ context.Context, arg string) (string, error) {
	fields := strings.Fields(arg)
	if len(fields) != 4 {
		return "", usage("set_axis_limits <display> <x|y> <min> <max>")
	}
	d, _, err := s.console.Displays.Find(fields[0])
	if err != nil {
		return "", err
	}
	axis, err := display.ParseAxis(fields[1])
	if err != nil {
		return "", err
	}
	lo, err := parseFloat("min", fields[2])
	if err != nil {
		return "", err
	}
	hi, err := parseFloat("max", fields[3])
	if err != nil {
		return "", err
	}
	if err := d.SetAxisLimits(axis, lo, hi); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s axis set to [%g, %g]", d.Name(), axis, lo, hi), nil
}

func (s *Shell) autoscale(_ context.Context, arg string) (string, error) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return "", usage("autoscale <display> <x|y>")
	}
	d, _, err := s.console.Displays.Find(fields[0])
	if err != nil {
		return "", err
	}
	axis, err := display.ParseAxis(fields[1])
	if err != nil {
		return "", err
	}
	if err := d.EnableAutoscale(axis); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s axis autoscaling", d.Name(), axis), nil
}

func (s *Shell) channelVisibility(visible bool) Handler {
	verb := "hidden"
	if visible {
		verb = "shown"
	}
	return func(_ context.Context, arg string) (string, error) {
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			return "", usage("show_channel|hide_channel <display> <ch>")
		}
		d, _, err := s.console.Displays.Find(fields[0])
		if err != nil {
			return "", err
		}
		ch, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("%w: channel %q is not an integer", types.ErrInvalidConfig, fields[1])
		}
		if err := d.SetChannelVisible(ch, visible); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s channel %d %s", d.Name(), ch, verb), nil
	}
}

func (s *Shell) setFeed(_ context.Context, arg string) (string, error) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return "", usage("set_feed <display> <raw|filtered>")
	}
	feed, err := display.ParseFeed(fields[1])
	if err != nil {
		return "", err
	}
	if err := s.console.Displays.SetFeed(fields[0], feed); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now on %s feed", fields[0], feed), nil
}

// ============================================================================
// Source, recording, inspection
// ============================================================================

func (s *Shell) setAxis(_ context.Context, arg string) (string, error) {
	if arg == "" {
		return "", usage("set_axis <x|y|z>")
	}
	if err := s.console.SetSourceAxis(arg); err != nil {
		return "", err
	}
	return fmt.Sprintf("source axis set to %s", arg), nil
}

func (s *Shell) startRecording(_ context.Context, arg string) (string, error) {
	session, err := s.console.Recorder.Start(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("recording to %s", session.Path), nil
}

func (s *Shell) stopRecording(context.Context, string) (string, error) {
	summary, err := s.console.Recorder.Stop()
	if errors.Is(err, recording.ErrNotRecording) {
		return "no active recording", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("stopped recording %s: %d plots, %d dropped, %d bytes in %s",
		summary.Path, summary.Plots, summary.Dropped, summary.Bytes, summary.Duration.Round(time.Millisecond)), nil
}

func (s *Shell) list(_ context.Context, arg string) (string, error) {
	kinds := registry.Kinds
	if arg != "" {
		kind, err := registry.ParseKind(arg)
		if err != nil {
			return "", err
		}
		kinds = []registry.Kind{kind}
	}

	var entries []registry.Entry
	for _, kind := range kinds {
		entries = append(entries, s.console.Registry.Entries(kind)...)
	}
	if len(entries) == 0 {
		return "nothing registered", nil
	}
	return table([]string{"KIND", "NAME", "HANDLE", "REGISTERED"}, len(entries), func(i int) []string {
		e := entries[i]
		return []string{string(e.Kind), e.Name, e.Handle.String(), e.RegisteredAt.Format(time.TimeOnly)}
	}), nil
}

func (s *Shell) status(context.Context, string) (string, error) {
	st := s.console.Status()

	var b strings.Builder
	state := "stopped"
	if s.driver != nil {
		state = s.driver.State().String()
	}
	fmt.Fprintf(&b, "driver:    %s (up %s)\n", state, st.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "source:    %s, %d channels at %g Hz", st.Source.Name, st.Source.Channels, st.Source.SampleRate)
	if st.Source.Axis != "" {
		fmt.Fprintf(&b, ", axis %s", st.Source.Axis)
	}
	fmt.Fprintf(&b, "\nbuffer:    %d/%d frames, latest sequence %d\n", st.Buffer.Size, st.Buffer.Capacity, st.Buffer.Latest)
	fmt.Fprintf(&b, "chain:     %d filters\n", len(st.Filters))
	fmt.Fprintf(&b, "displays:  %d\n", len(st.Displays))
	fmt.Fprintf(&b, "ticks:     %d acquired (%d without data), %d frames lost\n",
		st.Metrics.AcquireTicks, st.Metrics.NoDataTicks, st.Metrics.FramesLost)
	fmt.Fprintf(&b, "failures:  %d filter, %d render\n", st.Metrics.FilterFailures, st.Metrics.RenderFailures)
	if st.Recording != nil {
		fmt.Fprintf(&b, "recording: %s since %s", st.Recording.Path, st.Recording.Started.Format(time.TimeOnly))
	} else {
		b.WriteString("recording: off")
	}
	return b.String(), nil
}

func (s *Shell) help(_ context.Context, arg string) (string, error) {
	if arg != "" {
		cmd, ok := s.commands[arg]
		if !ok {
			return "", fmt.Errorf("%w: %q", types.ErrUnknownCommand, arg)
		}
		return fmt.Sprintf("%s\n  %s", cmd.Usage, cmd.Help), nil
	}
	cmds := s.Commands()
	return table([]string{"COMMAND", "DESCRIPTION"}, len(cmds), func(i int) []string {
		return []string{cmds[i].Usage, cmds[i].Help}
	}), nil
}

// ============================================================================
// Formatting
// ============================================================================

func parseFloat(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", types.ErrInvalidRange, name, raw)
	}
	return v, nil
}

func table(header []string, rows int, row func(i int) []string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i := 0; i < rows; i++ {
		fmt.Fprintln(w, strings.Join(row(i), "\t"))
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
