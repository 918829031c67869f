// Package csv provides CSV file reading for scalar measurement streams.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	streamio "github.com/edgestat/streamwatch/pkg/io"
)

// Reader reads one numeric column from a CSV file as a sample stream.
// Row order defines arrival order.
type Reader struct {
	file      *os.File
	reader    *csv.Reader
	hasHeader bool
	headers   []string
	column    int
	next      uint64
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithColumn selects which column holds the measurement.
func WithColumn(idx int) Option {
	return func(r *Reader) {
		r.column = idx
	}
}

// NewReader creates a new CSV reader.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.column < 0 {
		file.Close()
		return nil, fmt.Errorf("csv: column index must be non-negative, got %d", r.column)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			file.Close()
			return nil, err
		}
		r.headers = headers
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns all remaining samples.
func (r *Reader) Read() ([]streamio.Sample, error) {
	var samples []streamio.Sample

	for {
		s, err := r.readOne()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// Stream returns a channel of samples for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan streamio.Sample, error) {
	out := make(chan streamio.Sample, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				s, err := r.readOne()
				if err == io.EOF {
					return
				}
				if err != nil {
					continue
				}

				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// readOne parses the next row into a sample. Malformed rows consume an
// arrival order slot so later indices still match row positions.
func (r *Reader) readOne() (streamio.Sample, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return streamio.Sample{}, io.EOF
	}

	order := r.next
	r.next++

	if err != nil {
		return streamio.Sample{}, err
	}
	if r.column >= len(record) {
		return streamio.Sample{}, fmt.Errorf("csv: row has %d columns, want index %d", len(record), r.column)
	}

	v, err := strconv.ParseFloat(record[r.column], 64)
	if err != nil {
		return streamio.Sample{}, err
	}

	return streamio.Sample{ArrivalOrder: order, Value: v}, nil
}
