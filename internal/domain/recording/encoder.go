package recording

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
)

// Encoder writes plots to an output stream
type Encoder interface {
	Encode(plot display.Plot) error
	// Close flushes buffered output; it does not close the underlying writer
	Close() error
}

// EncoderFunc creates an encoder for a destination path
type EncoderFunc func(w io.Writer, path string) (Encoder, error)

// Compression names a stream compression
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Extension returns the file suffix for recordings with this compression
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".jsonl.gz"
	case CompressionZstd:
		return ".jsonl.zst"
	default:
		return ".jsonl"
	}
}

// CompressionFor picks the compression from a file name
func CompressionFor(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// ParseCompression validates configuration input
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressionNone, CompressionGzip, CompressionZstd:
		return Compression(s), nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// jsonLines writes one JSON document per line
type jsonLines struct {
	buf        *bufio.Writer
	compressor io.WriteCloser
}

// NewJSONLines is the default EncoderFunc
func NewJSONLines(w io.Writer, path string) (Encoder, error) {
	var compressor io.WriteCloser
	switch CompressionFor(path) {
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		compressor = zw
		w = zw
	case CompressionGzip:
		gw := gzip.NewWriter(w)
		compressor = gw
		w = gw
	}
	return &jsonLines{buf: bufio.NewWriter(w), compressor: compressor}, nil
}

func (e *jsonLines) Encode(plot display.Plot) error {
	data, err := sonic.Marshal(plot)
	if err != nil {
		return fmt.Errorf("marshal plot: %w", err)
	}
	if _, err := e.buf.Write(data); err != nil {
		return err
	}
	return e.buf.WriteByte('\n')
}

func (e *jsonLines) Close() error {
	if err := e.buf.Flush(); err != nil {
		return err
	}
	if e.compressor != nil {
		return e.compressor.Close()
	}
	return nil
}
