package compressor

import (
	"bytes"
	"context"
	"testing"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	repetitive = bytes.Repeat([]byte("ACGTTGCA"), 512)
	other      = bytes.Repeat([]byte("GGGATTTC"), 512)
	sentence   = []byte("the quick brown fox jumps over the lazy dog, again and again")
)

func allOracles(t *testing.T) []Oracle {
	t.Helper()
	z, err := NewZlib(0)
	require.NoError(t, err)
	zs, err := NewZstd(0)
	require.NoError(t, err)
	return []Oracle{z, zs, NewXz()}
}

func TestOraclesAreDeterministic(t *testing.T) {
	ctx := context.Background()
	for _, o := range allOracles(t) {
		t.Run(o.Name(), func(t *testing.T) {
			first, err := o.Measure(ctx, repetitive)
			require.NoError(t, err)
			second, err := o.Measure(ctx, repetitive)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Greater(t, first, 0)
			assert.Less(t, first, len(repetitive))
		})
	}
}

func TestOraclesHonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, o := range allOracles(t) {
		_, err := o.Measure(ctx, repetitive)
		assert.ErrorIs(t, err, context.Canceled, o.Name())
	}
}

func TestPrimingWithItselfShrinksTheOutput(t *testing.T) {
	ctx := context.Background()
	z, err := NewZlib(9)
	require.NoError(t, err)
	zs, err := NewZstd(0)
	require.NoError(t, err)

	for _, o := range []PrimedOracle{z, zs} {
		plain, err := o.Measure(ctx, sentence)
		require.NoError(t, err)
		primed, err := o.MeasurePrimed(ctx, sentence, sentence)
		require.NoError(t, err)
		assert.Less(t, primed, plain, o.Name())
	}
}

func TestCanPrime(t *testing.T) {
	z, err := NewZlib(0)
	require.NoError(t, err)

	assert.True(t, CanPrime(z))
	assert.False(t, CanPrime(NewXz()))
	assert.True(t, CanPrime(NewInstrumented(z)))
	assert.False(t, CanPrime(NewInstrumented(NewXz())))
}

func TestPrimedOnXzIsUnsupported(t *testing.T) {
	o := NewInstrumented(NewXz())
	_, err := o.MeasurePrimed(context.Background(), repetitive, other)
	assert.ErrorIs(t, err, datatypes.ErrUnsupportedConfiguration)
}

func TestNewZlibRejectsBadLevel(t *testing.T) {
	_, err := NewZlib(42)
	assert.Error(t, err)
}

func TestNewFromSettings(t *testing.T) {
	for _, name := range []string{settings.COMPRESSOR_ZLIB, settings.COMPRESSOR_ZSTD, settings.COMPRESSOR_XZ} {
		s := settings.DefaultSettings()
		s.Compressor = name
		o, err := New(s)
		require.NoError(t, err)
		assert.NotEmpty(t, o.Name())
	}

	s := settings.DefaultSettings()
	s.Compressor = "lz77"
	_, err := New(s)
	assert.ErrorIs(t, err, datatypes.ErrUnsupportedConfiguration)
}

func TestInstrumentedCountsMeasurements(t *testing.T) {
	z, err := NewZlib(1)
	require.NoError(t, err)
	o := NewInstrumented(z)

	before := testutil.ToFloat64(measurements.WithLabelValues(o.Name(), "plain"))
	_, err = o.Measure(context.Background(), repetitive)
	require.NoError(t, err)
	after := testutil.ToFloat64(measurements.WithLabelValues(o.Name(), "plain"))
	assert.Equal(t, before+1, after)
}

func TestOpenWithCache(t *testing.T) {
	s := settings.DefaultSettings()
	s.CacheDirectory = t.TempDir()

	o, closeFn, err := Open(s)
	require.NoError(t, err)
	defer closeFn()

	size, err := o.Measure(context.Background(), repetitive)
	require.NoError(t, err)
	assert.Greater(t, size, 0)
	assert.True(t, CanPrime(o))
}

func TestZstdPrimesWithShortPrior(t *testing.T) {
	zs, err := NewZstd(0)
	require.NoError(t, err)
	size, err := zs.MeasurePrimed(context.Background(), sentence, []byte("the"))
	require.NoError(t, err)
	assert.Greater(t, size, 0)
}

func TestZlibWarnsOnceAboutLongPriors(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	z, err := NewZlib(0)
	require.NoError(t, err)

	long := bytes.Repeat(repetitive, 2*ZLIB_WINDOW/len(repetitive))
	for i := 0; i < 3; i++ {
		_, err := z.MeasurePrimed(context.Background(), sentence, long)
		require.NoError(t, err)
	}
	_, err = z.MeasurePrimed(context.Background(), sentence, sentence)
	require.NoError(t, err)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Data["window"] == ZLIB_WINDOW {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}
