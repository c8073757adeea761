package comparisons

import (
	"context"
	"fmt"
	"time"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

type measureStats struct {
	jobs     int
	bytesIn  int
	duration time.Duration
}

// An InProcessEngine implements Engine. It measures one job after the other.
type InProcessEngine struct {
	config   settings.SeqclusterSettings
	measurer *BaseMeasurer
	stats    measureStats
}

func (s *InProcessEngine) Initialize(config settings.SeqclusterSettings, oracle compressor.Oracle) error {
	if err := checkOracle(config, oracle); err != nil {
		return err
	}
	s.config = config
	s.measurer = NewBaseMeasurer(oracle, config.MeasureTimeout)
	return nil
}

func (s *InProcessEngine) Measure(ctx context.Context, items *datatypes.ItemSet,
	joined map[datatypes.PairKey][]byte) (*datatypes.Measurements, error) {
	if s.measurer == nil {
		return nil, fmt.Errorf("asked for measurements but engine is not initialized")
	}
	jobs, err := Jobs(items, joined, s.config.Variant)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	s.stats = measureStats{}
	ret := datatypes.NewMeasurements()
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size, err := s.measurer.MeasureJob(ctx, &jobs[i])
		if err != nil {
			return nil, err
		}
		if err := record(ret, &jobs[i], size); err != nil {
			return nil, err
		}
		s.stats.jobs++
		s.stats.bytesIn += len(jobs[i].Payload) + len(jobs[i].Prior)
	}
	s.stats.duration = time.Since(start)
	log.WithFields(log.Fields{
		"engine":   settings.ENGINE_INPROCESS,
		"jobs":     s.stats.jobs,
		"bytes":    s.stats.bytesIn,
		"duration": s.stats.duration,
	}).Info("measurements complete")
	return ret, nil
}

func (s *InProcessEngine) Shutdown() error {
	log.Debug("in process engine shutting down")
	return nil
}
