package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
)

var (
	ErrNotRecording     = errors.New("no active recording")
	ErrAlreadyRecording = errors.New("recording already active")
)

// Options configures a Recorder
type Options struct {
	Dir         string
	Compression Compression // used for generated file names
	QueueSize   int
	Encoder     EncoderFunc
}

// Metrics receives recording observations
type Metrics interface {
	PlotRecorded()
	PlotDropped()
	RecordingActive(active bool)
}

// Session describes a recording in progress
type Session struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Started time.Time `json:"started"`
}

// Summary describes a finished recording
type Summary struct {
	Session
	Plots    uint64        `json:"plots"`
	Dropped  uint64        `json:"dropped"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

type active struct {
	session Session
	file    *os.File
	encoder Encoder
	queue   chan display.Plot
	done    chan struct{}

	// written by the writer goroutine, read after done is closed
	plots    uint64
	writeErr error

	dropped uint64 // Protected by Recorder.mu
}

// Recorder captures plots for at most one session at a time
type Recorder struct {
	mu      sync.Mutex
	current *active // Protected by mu
	opts    Options
	metrics Metrics
	logger  *zap.Logger
}

// New creates an idle recorder
func New(opts Options, logger *zap.Logger) *Recorder {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Compression == "" {
		opts.Compression = CompressionZstd
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Encoder == nil {
		opts.Encoder = NewJSONLines
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{opts: opts, logger: logger.Named("recorder")}
}

// WithMetrics installs a metrics sink
func (r *Recorder) WithMetrics(m Metrics) *Recorder {
	r.metrics = m
	return r
}

// Active returns the current session, if any
func (r *Recorder) Active() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Session{}, false
	}
	return r.current.session, true
}

// Start opens a new session. An empty path generates <dir>/<uuid><ext>.
func (r *Recorder) Start(path string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return Session{}, fmt.Errorf("%w: %s", ErrAlreadyRecording, r.current.session.Path)
	}

	sessionID := uuid.New().String()
	if path == "" {
		path = filepath.Join(r.opts.Dir, sessionID+r.opts.Compression.Extension())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Session{}, fmt.Errorf("create recording directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Session{}, fmt.Errorf("open recording: %w", err)
	}
	enc, err := r.opts.Encoder(f, path)
	if err != nil {
		f.Close()
		return Session{}, err
	}

	a := &active{
		session: Session{ID: sessionID, Path: path, Started: time.Now()},
		file:    f,
		encoder: enc,
		queue:   make(chan display.Plot, r.opts.QueueSize),
		done:    make(chan struct{}),
	}
	go r.write(a)
	r.current = a

	if r.metrics != nil {
		r.metrics.RecordingActive(true)
	}
	r.logger.Info("Recording started", zap.String("id", sessionID), zap.String("path", path))
	return a.session, nil
}

// Capture queues a plot when a session is active. It never blocks.
func (r *Recorder) Capture(plot display.Plot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}
	select {
	case r.current.queue <- plot:
	default:
		r.current.dropped++
		if r.metrics != nil {
			r.metrics.PlotDropped()
		}
	}
}

// Stop finalizes the active session
func (r *Recorder) Stop() (Summary, error) {
	r.mu.Lock()
	a := r.current
	r.current = nil
	if a != nil {
		close(a.queue)
	}
	r.mu.Unlock()

	if a == nil {
		return Summary{}, ErrNotRecording
	}
	<-a.done

	err := a.writeErr
	if cerr := a.encoder.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	var size int64
	if info, serr := os.Stat(a.session.Path); serr == nil {
		size = info.Size()
	}

	summary := Summary{
		Session:  a.session,
		Plots:    a.plots,
		Dropped:  a.dropped,
		Bytes:    size,
		Duration: time.Since(a.session.Started),
	}
	if r.metrics != nil {
		r.metrics.RecordingActive(false)
	}
	r.logger.Info("Recording stopped",
		zap.String("id", summary.ID),
		zap.Uint64("plots", summary.Plots),
		zap.Uint64("dropped", summary.Dropped),
		zap.Error(err),
	)
	return summary, err
}

func (r *Recorder) write(a *active) {
	defer close(a.done)
	for plot := range a.queue {
		if a.writeErr != nil {
			continue
		}
		if err := a.encoder.Encode(plot); err != nil {
			a.writeErr = fmt.Errorf("encode plot: %w", err)
			r.logger.Error("Recording write failed", zap.Error(err))
			continue
		}
		a.plots++
		if r.metrics != nil {
			r.metrics.PlotRecorded()
		}
	}
}
