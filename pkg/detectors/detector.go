// Package detectors provides streaming anomaly detection contracts.
package detectors

import (
	"context"
	"errors"

	"github.com/edgestat/streamwatch/pkg/io"
)

// ErrInvalidSample is returned when an ingested value is NaN or
// infinite. The sample is rejected and the window is left unchanged.
var ErrInvalidSample = errors.New("detectors: sample value must be finite")

// Event records one sample classified as anomalous.
type Event struct {
	// GlobalIndex is the sample's own arrival order, not a position
	// recomputed from the window.
	GlobalIndex uint64 `json:"global_index"`
	// Value is the original measurement.
	Value float64 `json:"value"`
	// ZScore is the normalized deviation that triggered the event.
	ZScore float64 `json:"z_score"`
}

// Evaluation is the result of scoring the window after one ingestion.
// The whole window is rescored on every tick, so Events may contain
// more than one entry, including samples ingested on earlier ticks.
type Evaluation struct {
	Events    []Event `json:"events,omitempty"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	WindowLen int     `json:"window_len"`
}

// StreamDetector consumes one sample at a time and reports anomalies
// in stream-global coordinates.
type StreamDetector interface {
	// Ingest evaluates a single measurement. arrivalOrder is the
	// caller's monotonic counter for the stream.
	Ingest(value float64, arrivalOrder uint64) (Evaluation, error)

	// DetectStream processes samples from a channel and outputs one
	// evaluation per accepted sample.
	DetectStream(ctx context.Context, input <-chan io.Sample, output chan<- Evaluation) error
}

// Config holds common configuration for detectors.
type Config struct {
	// Capacity is the sliding-window size in samples.
	Capacity int
	// Threshold is the |z-score| above which a sample is anomalous.
	Threshold float64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:  100,
		Threshold: 3.0,
	}
}
