package compressor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingOracle counts calls to the wrapped oracle.
type countingOracle struct {
	*Zlib
	calls atomic.Int32
}

func (c *countingOracle) Measure(ctx context.Context, payload []byte) (int, error) {
	c.calls.Add(1)
	return c.Zlib.Measure(ctx, payload)
}

func (c *countingOracle) MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error) {
	c.calls.Add(1)
	return c.Zlib.MeasurePrimed(ctx, payload, prior)
}

func newCounting(t *testing.T) *countingOracle {
	t.Helper()
	z, err := NewZlib(0)
	require.NoError(t, err)
	return &countingOracle{Zlib: z}
}

func TestCachedReturnsInnerSizes(t *testing.T) {
	ctx := context.Background()
	inner := newCounting(t)
	cached, err := NewCached(inner, "")
	require.NoError(t, err)
	defer cached.Close()

	want, err := inner.Zlib.Measure(ctx, repetitive)
	require.NoError(t, err)

	got, err := cached.Measure(ctx, repetitive)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = cached.Measure(ctx, repetitive)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedSeparatesPlainAndPrimed(t *testing.T) {
	ctx := context.Background()
	inner := newCounting(t)
	cached, err := NewCached(inner, "")
	require.NoError(t, err)
	defer cached.Close()

	plain, err := cached.Measure(ctx, sentence)
	require.NoError(t, err)
	primed, err := cached.MeasurePrimed(ctx, sentence, sentence)
	require.NoError(t, err)
	assert.NotEqual(t, plain, primed)

	swapped, err := cached.MeasurePrimed(ctx, repetitive, other)
	require.NoError(t, err)
	again, err := cached.MeasurePrimed(ctx, repetitive, other)
	require.NoError(t, err)
	assert.Equal(t, swapped, again)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newCounting(t)
	cached, err := NewCached(first, dir)
	require.NoError(t, err)
	want, err := cached.Measure(ctx, other)
	require.NoError(t, err)
	require.NoError(t, cached.Close())

	second := newCounting(t)
	reopened, err := NewCached(second, dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Measure(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(0), second.calls.Load())
}

func TestCachedPrimedOnXz(t *testing.T) {
	cached, err := NewCached(NewXz(), "")
	require.NoError(t, err)
	defer cached.Close()

	assert.False(t, CanPrime(cached))
	_, err = cached.MeasurePrimed(context.Background(), repetitive, other)
	assert.ErrorIs(t, err, datatypes.ErrUnsupportedConfiguration)
}
