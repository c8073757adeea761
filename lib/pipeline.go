// Package lib runs the seqcluster stages in order: pairs, measurements,
// distance matrix, dendrogram.
package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/comparisons"
	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/pairs"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// Result is everything a run produces. Reporters and the explorer read it.
type Result struct {
	Items        *datatypes.ItemSet
	Measurements *datatypes.Measurements
	Matrix       *distance.Matrix
	Tree         *cluster.MergeNode
	// Oracle names the compressor that produced the sizes.
	Oracle   string
	Variant  settings.Variant
	Finished time.Time
}

// A Pipeline owns an oracle and a measurement engine. It is not safe for
// concurrent runs.
type Pipeline struct {
	config      settings.SeqclusterSettings
	oracle      compressor.Oracle
	closeOracle func() error
	engine      comparisons.Engine
}

// NewPipeline builds the oracle stack and engine the settings ask for.
func NewPipeline(config settings.SeqclusterSettings) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_SETTINGS, "", err)
	}
	oracle, closeOracle, err := compressor.Open(config)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_SETTINGS, config.Compressor, err)
	}
	engine, err := comparisons.NewEngine(config)
	if err != nil {
		closeOracle()
		return nil, datatypes.NewStageError(datatypes.STAGE_SETTINGS, config.Engine, err)
	}
	p, err := NewPipelineWith(config, oracle, engine)
	if err != nil {
		closeOracle()
		return nil, err
	}
	p.closeOracle = closeOracle
	return p, nil
}

// NewPipelineWith uses the given oracle and engine. The engine is
// initialized here.
func NewPipelineWith(config settings.SeqclusterSettings, oracle compressor.Oracle,
	engine comparisons.Engine) (*Pipeline, error) {
	if err := engine.Initialize(config, oracle); err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_SETTINGS, config.Engine, err)
	}
	return &Pipeline{
		config:      config,
		oracle:      oracle,
		closeOracle: func() error { return nil },
		engine:      engine,
	}, nil
}

// Measure runs the stages up to the distance matrix.
func (p *Pipeline) Measure(ctx context.Context, items *datatypes.ItemSet) (
	*datatypes.Measurements, *distance.Matrix, error) {
	joined, err := pairs.BuildPairs(items)
	if err != nil {
		return nil, nil, datatypes.NewStageError(datatypes.STAGE_CONCAT, "", err)
	}
	log.WithFields(log.Fields{
		"items": items.Len(),
		"pairs": len(joined),
	}).Info("built pair concatenations")

	measureStart := time.Now()
	measurements, err := p.engine.Measure(ctx, items, joined)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"oracle":       p.oracle.Name(),
		"measurements": measurements.Count(),
		"duration":     time.Since(measureStart),
	}).Info("measured compressed sizes")

	matrix, err := distance.BuildMatrix(measurements, items.IDs(), p.config.Variant)
	if err != nil {
		return nil, nil, err
	}
	return measurements, matrix, nil
}

// Run measures and clusters items. Every stage consumes all of its
// predecessor's output; any failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, items *datatypes.ItemSet) (*Result, error) {
	start := time.Now()
	measurements, matrix, err := p.Measure(ctx, items)
	if err != nil {
		return nil, err
	}

	tree, err := cluster.Cluster(matrix,
		cluster.WithTolerance(p.config.Tolerance),
		cluster.WithLinkage(p.config.Linkage))
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"variant":  p.config.Variant,
		"leaves":   tree.Size,
		"height":   tree.Height,
		"duration": time.Since(start),
	}
	if c, err := cluster.CopheneticCorrelation(tree, matrix); err == nil {
		fields["cophenetic_correlation"] = fmt.Sprintf("%.3f", c)
	}
	log.WithFields(fields).Info("clustering complete")

	return &Result{
		Items:        items,
		Measurements: measurements,
		Matrix:       matrix,
		Tree:         tree,
		Oracle:       p.oracle.Name(),
		Variant:      p.config.Variant,
		Finished:     time.Now(),
	}, nil
}

// Close shuts the engine down and releases the size cache.
func (p *Pipeline) Close() error {
	engineErr := p.engine.Shutdown()
	if err := p.closeOracle(); err != nil {
		return err
	}
	return engineErr
}
