package comparisons

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// A ParallelEngine implements Engine with a bounded pool of goroutines.
// Jobs share no state; results are joined under a mutex and only handed
// out once every job has finished.
type ParallelEngine struct {
	config   settings.SeqclusterSettings
	measurer *BaseMeasurer
	cancel   context.CancelFunc
	mu       sync.Mutex
}

func (p *ParallelEngine) Initialize(config settings.SeqclusterSettings, oracle compressor.Oracle) error {
	if err := checkOracle(config, oracle); err != nil {
		return err
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	p.config = config
	p.measurer = NewBaseMeasurer(oracle, config.MeasureTimeout)
	return nil
}

func (p *ParallelEngine) Measure(ctx context.Context, items *datatypes.ItemSet,
	joined map[datatypes.PairKey][]byte) (*datatypes.Measurements, error) {
	if p.measurer == nil {
		return nil, fmt.Errorf("asked for measurements but engine is not initialized")
	}
	jobs, err := Jobs(items, joined, p.config.Variant)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	start := time.Now()
	ret := datatypes.NewMeasurements()
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.config.Workers)
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			size, err := p.measurer.MeasureJob(gctx, job)
			if err != nil {
				return err
			}
			resultsMu.Lock()
			defer resultsMu.Unlock()
			return record(ret, job, size)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"engine":   settings.ENGINE_PARALLEL,
		"workers":  p.config.Workers,
		"jobs":     len(jobs),
		"duration": time.Since(start),
	}).Info("measurements complete")
	return ret, nil
}

func (p *ParallelEngine) Shutdown() error {
	log.Debug("parallel engine shutting down")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
