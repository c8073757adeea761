package datatypes

import (
	"fmt"
)

// Kinds of compressed size measurement.
const (
	JOB_SINGLE = "single"
	JOB_PAIR   = "pair"
	JOB_PRIMED = "primed"
)

// A MeasureJob asks for one compressed size: of a single item, of a pair
// concatenation, or of Pair.First primed with Pair.Second.
type MeasureJob struct {
	Kind    string  `json:"kind"`
	ID      string  `json:"id,omitempty"`
	Pair    PairKey `json:"pair"`
	Payload []byte  `json:"payload"`
	Prior   []byte  `json:"prior,omitempty"`
}

// Subject names the item or pair the job is about, for error messages.
func (j *MeasureJob) Subject() string {
	if j.Kind == JOB_SINGLE {
		return j.ID
	}
	if j.Kind == JOB_PRIMED {
		return fmt.Sprintf("%s|%s", j.Pair.First, j.Pair.Second)
	}
	return j.Pair.String()
}

type MeasureResult struct {
	Kind  string  `json:"kind"`
	ID    string  `json:"id,omitempty"`
	Pair  PairKey `json:"pair"`
	Size  int     `json:"size"`
	Error string  `json:"error,omitempty"`
	// ErrorKind names the sentinel behind Error, see ErrorKind.
	ErrorKind string `json:"error_kind,omitempty"`
}

func (r *MeasureResult) Subject() string {
	j := MeasureJob{Kind: r.Kind, ID: r.ID, Pair: r.Pair}
	return j.Subject()
}

// Measurements holds every compressed size a distance matrix needs.
type Measurements struct {
	Single map[string]int `json:"single"`
	Pair   PairSizes      `json:"pair"`
	// Size of Pair.First compressed with Pair.Second as prior context.
	Primed PairSizes `json:"primed,omitempty"`
}

func NewMeasurements() *Measurements {
	return &Measurements{
		Single: make(map[string]int),
		Pair:   make(PairSizes),
		Primed: make(PairSizes),
	}
}

// Record stores size under the job's key. Sizes must be non-negative.
func (m *Measurements) Record(kind string, id string, pair PairKey, size int) error {
	if size < 0 {
		return fmt.Errorf("negative size %d: %w", size, ErrInvalidInput)
	}
	switch kind {
	case JOB_SINGLE:
		m.Single[id] = size
	case JOB_PAIR:
		m.Pair[pair] = size
	case JOB_PRIMED:
		m.Primed[pair] = size
	default:
		return fmt.Errorf("unknown measurement kind %q: %w", kind, ErrInvalidInput)
	}
	return nil
}

func (m *Measurements) Count() int {
	return len(m.Single) + len(m.Pair) + len(m.Primed)
}
