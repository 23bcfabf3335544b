package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// replay streams recorded rows from files at a fixed virtual rate
type replay struct {
	lifecycle
	opts     Options
	files    []string
	channels int
	logger   *zap.Logger

	mu        sync.Mutex
	index     int // current file
	reader    *rowReader
	exhausted bool
	clock     *clock
}

func newReplaySource(opts Options, logger *zap.Logger) (Source, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: replay source needs a path", types.ErrInvalidConfig)
	}
	files, err := doublestar.FilepathGlob(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: bad replay pattern %q: %v", types.ErrInvalidConfig, opts.Path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", types.ErrInvalidConfig, opts.Path)
	}
	sort.Strings(files)

	// the first row fixes the channel count for the lifetime of the source
	probe, err := openRows(files[0])
	if err != nil {
		return nil, err
	}
	defer probe.Close()
	first, err := probe.next()
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no sample rows: %v", types.ErrInvalidConfig, files[0], err)
	}

	return &replay{
		opts:     opts,
		files:    files,
		channels: len(first),
		logger:   logger,
	}, nil
}

func (r *replay) Name() string        { return "replay" }
func (r *replay) Channels() int       { return r.channels }
func (r *replay) SampleRate() float64 { return r.opts.SampleRate }

func (r *replay) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = 0
	r.exhausted = false
	r.clock = newClock(r.opts.SampleRate)
	if err := r.openLocked(); err != nil {
		return err
	}
	r.running.Store(true)
	r.logger.Info("Replay source started",
		zap.Strings("files", r.files),
		zap.Int("channels", r.channels),
		zap.Bool("loop", r.opts.Loop),
	)
	return nil
}

func (r *replay) Stop() error {
	r.running.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader != nil {
		err := r.reader.Close()
		r.reader = nil
		return err
	}
	return nil
}

func (r *replay) ReadTick(ctx context.Context) ([]types.Frame, error) {
	if !r.isRunning() {
		return nil, types.ErrNoData
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	frames := make([]types.Frame, 0, r.opts.Block)
	for len(frames) < r.opts.Block && !r.exhausted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.reader.next()
		if errors.Is(err, io.EOF) {
			if err := r.advanceLocked(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(row) != r.channels {
			return nil, fmt.Errorf("%s line %d: %w", r.files[r.index], r.reader.line, types.ShapeError(r.channels, len(row)))
		}
		frames = append(frames, types.NewFrame(r.clock.next(), row))
	}

	if len(frames) == 0 {
		return nil, types.ErrNoData
	}
	return frames, nil
}

// advanceLocked moves to the next file, wrapping when looping
func (r *replay) advanceLocked() error {
	_ = r.reader.Close()
	r.reader = nil

	r.index++
	if r.index >= len(r.files) {
		if !r.opts.Loop {
			r.exhausted = true
			r.index = len(r.files) - 1
			r.logger.Info("Replay exhausted")
			return nil
		}
		r.index = 0
	}
	return r.openLocked()
}

func (r *replay) openLocked() error {
	rows, err := openRows(r.files[r.index])
	if err != nil {
		return err
	}
	r.reader = rows
	return nil
}

// rowReader parses comma-separated numeric rows
type rowReader struct {
	file    *os.File
	closers []func() error
	scanner *bufio.Scanner
	line    int
}

// openRows opens a plain, gzip or zstd file, detecting compression by content
func openRows(path string) (*rowReader, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	rr := &rowReader{file: f}
	var src io.Reader = f
	switch {
	case mtype.Is("application/gzip"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		rr.closers = append(rr.closers, gz.Close)
		src = gz
	case mtype.Is("application/zstd"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		rr.closers = append(rr.closers, func() error { zr.Close(); return nil })
		src = zr
	}

	rr.scanner = bufio.NewScanner(src)
	rr.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return rr, nil
}

// next returns the next numeric row; blank lines, # comments and a leading
// header row are skipped
func (rr *rowReader) next() ([]float64, error) {
	for rr.scanner.Scan() {
		rr.line++
		text := strings.TrimSpace(rr.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row, err := parseRow(text)
		if err != nil {
			if rr.line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", rr.line, err)
		}
		return row, nil
	}
	if err := rr.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (rr *rowReader) Close() error {
	var firstErr error
	for i := len(rr.closers) - 1; i >= 0; i-- {
		if err := rr.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := rr.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func parseRow(text string) ([]float64, error) {
	fields := strings.Split(text, ",")
	row := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %q is not a number", i, field)
		}
		row[i] = v
	}
	return row, nil
}
