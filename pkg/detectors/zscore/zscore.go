// Package zscore implements sliding-window z-score anomaly detection.
//
// Every ingested sample is pushed into a bounded FIFO window and the
// whole window is rescored against the threshold, so a sample can gain
// or lose anomaly status on later ticks as the window statistics
// drift. Mean and population standard deviation are recomputed from a
// full snapshot on every tick rather than maintained incrementally;
// at typical window sizes the O(N) cost is negligible and the results
// are free of accumulation drift.
package zscore

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/edgestat/streamwatch/pkg/detectors"
	streamio "github.com/edgestat/streamwatch/pkg/io"
	"github.com/edgestat/streamwatch/pkg/window"
)

// Detector flags samples whose |z-score| over the current window
// exceeds a fixed threshold.
type Detector struct {
	mu        sync.Mutex
	buf       *window.Buffer
	capacity  int
	threshold float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithCapacity sets the sliding-window size in samples.
func WithCapacity(n int) Option {
	return func(d *Detector) {
		d.capacity = n
	}
}

// WithThreshold sets the |z-score| classification threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		d.threshold = t
	}
}

// New creates a Detector with the given options. Capacity below 2 or a
// non-positive threshold is a construction error.
func New(opts ...Option) (*Detector, error) {
	cfg := detectors.DefaultConfig()
	d := &Detector{
		capacity:  cfg.Capacity,
		threshold: cfg.Threshold,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.threshold <= 0 {
		return nil, fmt.Errorf("zscore: threshold must be positive, got %g", d.threshold)
	}

	buf, err := window.New(d.capacity)
	if err != nil {
		return nil, err
	}
	d.buf = buf

	return d, nil
}

// Ingest evaluates a single measurement against the window.
//
// NaN and infinite values are rejected with detectors.ErrInvalidSample
// and leave the window untouched. Otherwise the sample is pushed
// (evicting the oldest when full) and every sample in the window is
// rescored. A zero-variance window yields zero events: identical
// values cannot deviate from their own mean, and dividing by a zero
// standard deviation is never attempted.
func (d *Detector) Ingest(value float64, arrivalOrder uint64) (detectors.Evaluation, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return detectors.Evaluation{}, fmt.Errorf("%w: %g", detectors.ErrInvalidSample, value)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf.Push(window.Sample{GlobalIndex: arrivalOrder, Value: value})
	snap := d.buf.Snapshot()

	values := make([]float64, len(snap))
	for i, s := range snap {
		values[i] = s.Value
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return detectors.Evaluation{}, fmt.Errorf("zscore: window statistics: %w", err)
	}

	stdDev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return detectors.Evaluation{}, fmt.Errorf("zscore: window statistics: %w", err)
	}

	eval := detectors.Evaluation{
		Mean:      mean,
		StdDev:    stdDev,
		WindowLen: len(snap),
	}

	if stdDev == 0 {
		return eval, nil
	}

	for _, s := range snap {
		z := (s.Value - mean) / stdDev
		if math.Abs(z) > d.threshold {
			eval.Events = append(eval.Events, detectors.Event{
				GlobalIndex: s.GlobalIndex,
				Value:       s.Value,
				ZScore:      z,
			})
		}
	}

	return eval, nil
}

// DetectStream processes samples from a channel. Samples rejected by
// Ingest are skipped; the stream keeps going.
func (d *Detector) DetectStream(ctx context.Context, input <-chan streamio.Sample, output chan<- detectors.Evaluation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-input:
			if !ok {
				return nil
			}

			eval, err := d.Ingest(s.Value, s.ArrivalOrder)
			if err != nil {
				continue
			}

			select {
			case output <- eval:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Threshold returns the configured |z-score| threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Capacity returns the configured window size.
func (d *Detector) Capacity() int {
	return d.capacity
}

// WindowLen returns the number of samples currently in the window.
func (d *Detector) WindowLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Len()
}
