// Package comparisons contains different execution engines for
// measuring the compressed sizes of items and item pairs.
package comparisons

import (
	"context"
	"fmt"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
)

// An engine takes the items and their pair concatenations, measures
// every size the configured distance variant needs, and returns them.
type Engine interface {

	// Initialize provides the engine with the settings and the oracle it needs.
	Initialize(config settings.SeqclusterSettings, oracle compressor.Oracle) error

	// Measure collects all sizes. It either returns a complete set of
	// measurements or an error; there are no partial results.
	Measure(ctx context.Context, items *datatypes.ItemSet,
		joined map[datatypes.PairKey][]byte) (*datatypes.Measurements, error)

	// Shutdown gives the engine a chance to cancel running computations when it is deleted.
	Shutdown() error
}

// NewEngine returns an uninitialized engine for the settings.
func NewEngine(config settings.SeqclusterSettings) (Engine, error) {
	switch config.Engine {
	case settings.ENGINE_INPROCESS:
		return &InProcessEngine{}, nil
	case settings.ENGINE_PARALLEL:
		return &ParallelEngine{}, nil
	case settings.ENGINE_KAFKA:
		return &KafkaEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q: %w", config.Engine, datatypes.ErrUnsupportedConfiguration)
	}
}
