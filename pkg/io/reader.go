// Package io provides sources and sinks for scalar measurement streams.
package io

import "context"

// Sample pairs a measurement with its arrival order. The source owns
// the monotonic counter; detectors never generate indices themselves.
type Sample struct {
	ArrivalOrder uint64
	Value        float64
}

// Source supplies samples at whatever cadence it chooses.
type Source interface {
	// Stream returns a channel of samples for real-time processing.
	// The channel is closed when the source is exhausted or ctx ends.
	Stream(ctx context.Context) (<-chan Sample, error)

	// Close releases resources.
	Close() error
}

// Record is the persisted shape of a single anomaly event.
type Record struct {
	GlobalIndex uint64  `json:"global_index"`
	Value       float64 `json:"value"`
	ZScore      float64 `json:"z_score"`
}

// Sink receives anomaly records in emission order.
type Sink interface {
	// Write persists a single record.
	Write(rec Record) error

	// Close releases resources.
	Close() error
}
