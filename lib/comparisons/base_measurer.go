package comparisons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/pairs"
	"github.com/kpaschen/seqcluster/lib/settings"
)

// Jobs lists the measurements the variant needs, in a fixed order:
// every item, then every pair, then every primed pair.
func Jobs(items *datatypes.ItemSet, joined map[datatypes.PairKey][]byte,
	variant settings.Variant) ([]datatypes.MeasureJob, error) {
	keys, err := pairs.Keys(items)
	if err != nil {
		return nil, err
	}
	jobs := make([]datatypes.MeasureJob, 0, items.Len()+2*len(keys))
	for i := 0; i < items.Len(); i++ {
		item := items.At(i)
		jobs = append(jobs, datatypes.MeasureJob{
			Kind:    datatypes.JOB_SINGLE,
			ID:      item.ID,
			Payload: item.Payload,
		})
	}
	for _, key := range keys {
		payload, ok := joined[key]
		if !ok {
			return nil, fmt.Errorf("no concatenation for pair %s: %w", key, datatypes.ErrMissingMeasurement)
		}
		jobs = append(jobs, datatypes.MeasureJob{
			Kind:    datatypes.JOB_PAIR,
			Pair:    key,
			Payload: payload,
		})
	}
	if variant == settings.VARIANT_PRIMED {
		for _, key := range keys {
			jobs = append(jobs, datatypes.MeasureJob{
				Kind:    datatypes.JOB_PRIMED,
				Pair:    key,
				Payload: items.At(items.Index(key.First)).Payload,
				Prior:   items.At(items.Index(key.Second)).Payload,
			})
		}
	}
	return jobs, nil
}

// checkOracle fails early if the variant needs priming the oracle cannot do.
func checkOracle(config settings.SeqclusterSettings, oracle compressor.Oracle) error {
	if oracle == nil {
		return fmt.Errorf("no compression oracle: %w", datatypes.ErrUnsupportedConfiguration)
	}
	if config.Variant == settings.VARIANT_PRIMED && !compressor.CanPrime(oracle) {
		return fmt.Errorf("variant %s needs a compressor with prior context, %s has none: %w",
			config.Variant, oracle.Name(), datatypes.ErrUnsupportedConfiguration)
	}
	return nil
}

// A BaseMeasurer runs single jobs against an oracle. The engines and the
// kafka worker share it.
type BaseMeasurer struct {
	oracle  compressor.Oracle
	timeout time.Duration
}

func NewBaseMeasurer(oracle compressor.Oracle, timeout time.Duration) *BaseMeasurer {
	return &BaseMeasurer{oracle: oracle, timeout: timeout}
}

// MeasureJob returns the job's size. Errors are StageErrors naming the job's
// subject.
func (b *BaseMeasurer) MeasureJob(ctx context.Context, job *datatypes.MeasureJob) (int, error) {
	size, err := b.withTimeout(ctx, func(ctx context.Context) (int, error) {
		switch job.Kind {
		case datatypes.JOB_SINGLE, datatypes.JOB_PAIR:
			return b.oracle.Measure(ctx, job.Payload)
		case datatypes.JOB_PRIMED:
			primed, ok := b.oracle.(compressor.PrimedOracle)
			if !ok {
				return 0, fmt.Errorf("%s cannot compress with a prior context: %w",
					b.oracle.Name(), datatypes.ErrUnsupportedConfiguration)
			}
			return primed.MeasurePrimed(ctx, job.Payload, job.Prior)
		default:
			return 0, fmt.Errorf("unknown measurement kind %q: %w", job.Kind, datatypes.ErrInvalidInput)
		}
	})
	if err != nil {
		return 0, datatypes.NewStageError(datatypes.STAGE_MEASURE, job.Subject(), err)
	}
	return size, nil
}

// withTimeout runs measure with the per-call bound. Compressors do not check
// their context while compressing, so a call that overruns is abandoned and
// its result discarded.
func (b *BaseMeasurer) withTimeout(ctx context.Context,
	measure func(context.Context) (int, error)) (int, error) {
	if b.timeout <= 0 {
		return measure(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		size int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		size, err := measure(callCtx)
		done <- result{size: size, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, fmt.Errorf("exceeded %v: %w", b.timeout, datatypes.ErrMeasurementTimeout)
		}
		return r.size, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("exceeded %v: %w", b.timeout, datatypes.ErrMeasurementTimeout)
	}
}

// record stores a finished job in m.
func record(m *datatypes.Measurements, job *datatypes.MeasureJob, size int) error {
	if err := m.Record(job.Kind, job.ID, job.Pair, size); err != nil {
		return datatypes.NewStageError(datatypes.STAGE_MEASURE, job.Subject(), err)
	}
	return nil
}
