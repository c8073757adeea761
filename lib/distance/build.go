package distance

import (
	"fmt"
	"math"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// BuildMatrix computes the distance between every pair of ids in order.
// For x = order[i], y = order[j], i < j:
//
//	concat: d = 1 - (size(x) - (size(x+y) - size(y))) / size(x+y)
//	primed: d = 1 - (size(x) - size(x|y)) / size(x+y)
//
// where size(x|y) is the size of x compressed with y as prior context.
func BuildMatrix(m *datatypes.Measurements, order []string, variant settings.Variant) (*Matrix, error) {
	if variant != settings.VARIANT_CONCAT && variant != settings.VARIANT_PRIMED {
		return nil, datatypes.NewStageError(datatypes.STAGE_MATRIX, "",
			fmt.Errorf("unknown variant %q: %w", variant, datatypes.ErrUnsupportedConfiguration))
	}
	if len(order) < 2 {
		return nil, datatypes.NewStageError(datatypes.STAGE_MATRIX, "",
			fmt.Errorf("need at least 2 items, got %d: %w", len(order), datatypes.ErrInvalidInput))
	}
	if m == nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_MATRIX, "",
			fmt.Errorf("no measurements: %w", datatypes.ErrMissingMeasurement))
	}
	ret, err := newEmptyMatrix(order)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_MATRIX, "", err)
	}

	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			d, err := pairDistance(m, order[i], order[j], variant)
			if err != nil {
				return nil, err
			}
			ret.data.SetSym(i, j, d)
		}
	}
	log.WithFields(log.Fields{
		"variant": variant,
		"items":   len(order),
	}).Debug("distance matrix built")
	return ret, nil
}

func pairDistance(m *datatypes.Measurements, x string, y string, variant settings.Variant) (float64, error) {
	pair := datatypes.NewPairKey(x, y)
	sx, ok := m.Single[x]
	if !ok {
		return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, x,
			fmt.Errorf("no size for %s: %w", x, datatypes.ErrMissingMeasurement))
	}
	sxy, ok := m.Pair[pair]
	if !ok {
		return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, pair.String(),
			fmt.Errorf("no size for %s+%s: %w", x, y, datatypes.ErrMissingMeasurement))
	}
	if sxy == 0 {
		return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, pair.String(),
			fmt.Errorf("concatenation compressed to 0 bytes: %w", datatypes.ErrInvalidInput))
	}

	var explained int
	switch variant {
	case settings.VARIANT_CONCAT:
		sy, ok := m.Single[y]
		if !ok {
			return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, y,
				fmt.Errorf("no size for %s: %w", y, datatypes.ErrMissingMeasurement))
		}
		explained = sx - (sxy - sy)
	case settings.VARIANT_PRIMED:
		primed, ok := m.Primed[pair]
		if !ok {
			return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, pair.String(),
				fmt.Errorf("no size for %s given %s: %w", x, y, datatypes.ErrMissingMeasurement))
		}
		explained = sx - primed
	}
	d := 1 - float64(explained)/float64(sxy)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, datatypes.NewStageError(datatypes.STAGE_MATRIX, pair.String(),
			fmt.Errorf("distance is not finite: %w", datatypes.ErrInvalidInput))
	}
	return d, nil
}
