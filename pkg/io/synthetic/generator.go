// Package synthetic generates a seasonal measurement stream with
// gaussian noise and occasional injected spikes, useful for demos and
// for exercising detectors without a live feed.
package synthetic

import (
	"context"
	"math"
	"math/rand"
	"time"

	streamio "github.com/edgestat/streamwatch/pkg/io"
)

// Generator produces sin(0.1t) plus gaussian noise. With a small
// probability each tick, a large spike in either direction is added.
type Generator struct {
	rng       *rand.Rand
	interval  time.Duration
	noiseStd  float64
	spikeProb float64
	spikeMag  float64
	count     uint64 // 0 means unbounded
	next      uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithInterval sets the delay between emitted samples. Zero emits as
// fast as the consumer can read.
func WithInterval(d time.Duration) Option {
	return func(g *Generator) {
		g.interval = d
	}
}

// WithSpikeProbability sets the per-sample chance of an injected spike.
func WithSpikeProbability(p float64) Option {
	return func(g *Generator) {
		g.spikeProb = p
	}
}

// WithSpikeMagnitude sets the absolute size of injected spikes.
func WithSpikeMagnitude(m float64) Option {
	return func(g *Generator) {
		g.spikeMag = m
	}
}

// WithCount bounds the total number of samples emitted.
func WithCount(n uint64) Option {
	return func(g *Generator) {
		g.count = n
	}
}

// New creates a Generator with the given options.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		interval:  100 * time.Millisecond,
		noiseStd:  0.5,
		spikeProb: 0.01,
		spikeMag:  5,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Next returns the next sample in the sequence.
func (g *Generator) Next() streamio.Sample {
	t := g.next
	g.next++

	value := math.Sin(0.1*float64(t)) + g.rng.NormFloat64()*g.noiseStd
	if g.rng.Float64() < g.spikeProb {
		if g.rng.Intn(2) == 0 {
			value += g.spikeMag
		} else {
			value -= g.spikeMag
		}
	}

	return streamio.Sample{ArrivalOrder: t, Value: value}
}

// Stream returns a channel of samples emitted at the configured
// interval until the count is reached or ctx ends.
func (g *Generator) Stream(ctx context.Context) (<-chan streamio.Sample, error) {
	out := make(chan streamio.Sample, 100)

	go func() {
		defer close(out)
		for emitted := uint64(0); g.count == 0 || emitted < g.count; emitted++ {
			s := g.Next()

			select {
			case out <- s:
			case <-ctx.Done():
				return
			}

			if g.interval > 0 {
				select {
				case <-time.After(g.interval):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources. The generator holds none.
func (g *Generator) Close() error {
	return nil
}
