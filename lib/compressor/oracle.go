// Package compressor contains the compression oracles that measure
// compressed sizes for the distance computation.
package compressor

import (
	"context"
	"fmt"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
)

// An Oracle returns the compressed size of a payload in bytes. The result
// must only depend on the payload and the oracle's fixed settings.
type Oracle interface {
	Name() string
	Measure(ctx context.Context, payload []byte) (int, error)
}

// A PrimedOracle can also measure a payload compressed with another payload
// as the compressor's prior context.
type PrimedOracle interface {
	Oracle
	MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error)
}

type unwrapper interface {
	Unwrap() Oracle
}

// CanPrime reports whether o, or the oracle it wraps, supports priming.
func CanPrime(o Oracle) bool {
	if w, ok := o.(unwrapper); ok {
		return CanPrime(w.Unwrap())
	}
	_, ok := o.(PrimedOracle)
	return ok
}

// measurePrimed delegates to inner if it can prime.
func measurePrimed(ctx context.Context, inner Oracle, payload []byte, prior []byte) (int, error) {
	p, ok := inner.(PrimedOracle)
	if !ok || !CanPrime(inner) {
		return 0, fmt.Errorf("%s cannot compress with a prior context: %w",
			inner.Name(), datatypes.ErrUnsupportedConfiguration)
	}
	return p.MeasurePrimed(ctx, payload, prior)
}

// New returns the oracle named in the settings, not cached or instrumented.
func New(s settings.SeqclusterSettings) (Oracle, error) {
	switch s.Compressor {
	case settings.COMPRESSOR_ZLIB:
		return NewZlib(s.Level)
	case settings.COMPRESSOR_ZSTD:
		return NewZstd(s.Level)
	case settings.COMPRESSOR_XZ:
		return NewXz(), nil
	default:
		return nil, fmt.Errorf("unknown compressor %q: %w", s.Compressor, datatypes.ErrUnsupportedConfiguration)
	}
}

// Open builds the full oracle stack for the settings: the compressor,
// the badger cache if a cache directory is set, and metrics.
// The returned close function releases the cache.
func Open(s settings.SeqclusterSettings) (Oracle, func() error, error) {
	base, err := New(s)
	if err != nil {
		return nil, nil, err
	}
	closer := func() error { return nil }
	oracle := base
	if s.CacheDirectory != "" {
		cached, err := NewCached(base, s.CacheDirectory)
		if err != nil {
			return nil, nil, err
		}
		oracle = cached
		closer = cached.Close
	}
	return NewInstrumented(oracle), closer, nil
}
