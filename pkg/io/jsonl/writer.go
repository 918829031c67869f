// Package jsonl persists anomaly records as append-only JSON lines.
package jsonl

import (
	"encoding/json"
	"fmt"
	"os"

	streamio "github.com/edgestat/streamwatch/pkg/io"
)

// Writer appends one JSON object per record to a log file. Writes go
// straight to the file descriptor, so every record is durable as soon
// as Write returns; the stream may be killed at any tick.
type Writer struct {
	file *os.File
	enc  *json.Encoder
}

// NewWriter opens (or creates) the log file for appending.
func NewWriter(filename string) (*Writer, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open log: %w", err)
	}

	return &Writer{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Write appends a single record as one line.
func (w *Writer) Write(rec streamio.Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("jsonl: write record: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}
