package datatypes

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers malformed or insufficient items and matrices.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingMeasurement means a compressed size required by the metric is absent.
	ErrMissingMeasurement = errors.New("missing measurement")

	// ErrMeasurementTimeout means a compressor call exceeded its time bound.
	ErrMeasurementTimeout = errors.New("measurement timeout")

	// ErrUnsupportedConfiguration is returned for settings the chosen
	// collaborators cannot honor, e.g. the primed variant on a compressor
	// without context priming.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
)

// Pipeline stage names used in StageError.
const (
	STAGE_INGEST   = "ingest"
	STAGE_CONCAT   = "concatenate"
	STAGE_MEASURE  = "measure"
	STAGE_MATRIX   = "matrix"
	STAGE_CLUSTER  = "cluster"
	STAGE_REPORT   = "report"
	STAGE_SETTINGS = "settings"
)

// A StageError records which stage failed and on which item or pair.
type StageError struct {
	Stage   string
	Subject string
	Err     error
}

func NewStageError(stage string, subject string, err error) *StageError {
	return &StageError{Stage: stage, Subject: subject, Err: err}
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

var sentinels = []error{
	ErrInvalidInput,
	ErrMissingMeasurement,
	ErrMeasurementTimeout,
	ErrUnsupportedConfiguration,
}

// ErrorKind names the sentinel err wraps, or returns "" when it wraps none.
// Errors crossing a process boundary carry it next to their text.
func ErrorKind(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return ""
}

// KindError is the sentinel named by kind, or nil for an unknown kind.
func KindError(kind string) error {
	for _, s := range sentinels {
		if s.Error() == kind {
			return s
		}
	}
	return nil
}
