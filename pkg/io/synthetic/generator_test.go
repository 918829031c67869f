package synthetic

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsDeterministicPerSeed(t *testing.T) {
	a := New(WithSeed(42))
	b := New(WithSeed(42))

	for i := 0; i < 50; i++ {
		sa, sb := a.Next(), b.Next()
		assert.Equal(t, sa, sb)
		assert.Equal(t, uint64(i), sa.ArrivalOrder)
		assert.False(t, math.IsNaN(sa.Value))
		assert.False(t, math.IsInf(sa.Value, 0))
	}
}

func TestSpikesDominateWhenForced(t *testing.T) {
	g := New(WithSeed(7), WithSpikeProbability(1), WithSpikeMagnitude(100))

	for i := 0; i < 20; i++ {
		s := g.Next()
		assert.Greater(t, math.Abs(s.Value), 90.0, "every sample should carry a spike")
	}
}

func TestStreamCountAndOrdering(t *testing.T) {
	g := New(WithSeed(1), WithInterval(0), WithCount(25))

	ch, err := g.Stream(context.Background())
	require.NoError(t, err)

	var n uint64
	for s := range ch {
		assert.Equal(t, n, s.ArrivalOrder)
		n++
	}
	assert.Equal(t, uint64(25), n)
	assert.NoError(t, g.Close())
}

func TestStreamStopsOnCancel(t *testing.T) {
	g := New(WithSeed(1), WithInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := g.Stream(ctx)
	require.NoError(t, err)

	<-ch
	cancel()

	// The channel closes once the generator observes cancellation.
	for range ch {
	}
}
