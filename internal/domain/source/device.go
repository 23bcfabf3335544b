package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Device is a sensor that yields one raw sample (all columns) per read
type Device interface {
	Open(ctx context.Context) error
	ReadSample(ctx context.Context) ([]float64, error)
	Close() error
}

// LineDevice reads comma-separated voltage rows from a character device,
// FIFO or file. Every column of the row is returned; axis selection happens
// in the hardware source.
type LineDevice struct {
	path string

	readMu  sync.Mutex // serializes scanner use
	scanner *bufio.Scanner

	fileMu sync.Mutex // held briefly so Close can interrupt a blocked read
	file   *os.File
}

// NewLineDevice creates a device for the given path
func NewLineDevice(path string) *LineDevice {
	return &LineDevice{path: path}
}

func (d *LineDevice) Open(context.Context) error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open device %s: %w", d.path, err)
	}

	d.readMu.Lock()
	d.fileMu.Lock()
	d.file = f
	d.scanner = bufio.NewScanner(f)
	d.fileMu.Unlock()
	d.readMu.Unlock()
	return nil
}

func (d *LineDevice) ReadSample(ctx context.Context) ([]float64, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if d.scanner == nil {
		return nil, fmt.Errorf("device %s is not open", d.path)
	}
	for d.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		return parseRow(text)
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (d *LineDevice) Close() error {
	d.fileMu.Lock()
	defer d.fileMu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
