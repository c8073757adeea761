// Package distance turns compressed sizes into a symmetric distance matrix.
package distance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"gonum.org/v1/gonum/mat"
)

// DEFAULT_TOLERANCE bounds asymmetry and diagonal values when validating.
const DEFAULT_TOLERANCE = 1e-9

// A Matrix is an N×N distance matrix with a fixed label order.
// It is symmetric by construction and has a zero diagonal.
// Values are finite but may be negative or larger than 1.
type Matrix struct {
	labels []string
	index  map[string]int
	data   *mat.SymDense
}

// NewMatrix validates rows and wraps them. Entries above the diagonal are
// authoritative; the lower triangle only has to agree within tol.
func NewMatrix(labels []string, rows [][]float64, tol float64) (*Matrix, error) {
	if err := ValidateMatrix(rows, tol); err != nil {
		return nil, err
	}
	n := len(rows)
	m, err := newEmptyMatrix(labels)
	if err != nil {
		return nil, err
	}
	if m.data.SymmetricDim() != n {
		return nil, fmt.Errorf("%d labels for a %d×%d matrix: %w", len(labels), n, n, datatypes.ErrInvalidInput)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.data.SetSym(i, j, rows[i][j])
		}
	}
	return m, nil
}

func newEmptyMatrix(labels []string) (*Matrix, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("empty matrix: %w", datatypes.ErrInvalidInput)
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("label %d is empty: %w", i, datatypes.ErrInvalidInput)
		}
		if _, exists := index[l]; exists {
			return nil, fmt.Errorf("duplicate label %q: %w", l, datatypes.ErrInvalidInput)
		}
		index[l] = i
	}
	ls := make([]string, len(labels))
	copy(ls, labels)
	return &Matrix{
		labels: ls,
		index:  index,
		data:   mat.NewSymDense(len(labels), nil),
	}, nil
}

// DefaultLabels names n leaves by their index, for tables read without labels.
func DefaultLabels(n int) []string {
	ret := make([]string, n)
	for i := range ret {
		ret[i] = strconv.Itoa(i)
	}
	return ret
}

// ValidateMatrix checks that rows form a square matrix of finite values,
// symmetric within tol, with every diagonal entry within tol of zero.
func ValidateMatrix(rows [][]float64, tol float64) error {
	n := len(rows)
	if n == 0 {
		return fmt.Errorf("empty matrix: %w", datatypes.ErrInvalidInput)
	}
	if tol < 0 || math.IsNaN(tol) {
		return fmt.Errorf("invalid tolerance %g: %w", tol, datatypes.ErrInvalidInput)
	}
	for i, row := range rows {
		if len(row) != n {
			return fmt.Errorf("row %d has %d entries, expected %d: %w", i, len(row), n, datatypes.ErrInvalidInput)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := rows[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("entry (%d,%d) is not finite: %w", i, j, datatypes.ErrInvalidInput)
			}
		}
		if math.Abs(rows[i][i]) > tol {
			return fmt.Errorf("diagonal entry %d is %g: %w", i, rows[i][i], datatypes.ErrInvalidInput)
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(rows[i][j]-rows[j][i]) > tol {
				return fmt.Errorf("entries (%d,%d)=%g and (%d,%d)=%g differ: %w",
					i, j, rows[i][j], j, i, rows[j][i], datatypes.ErrInvalidInput)
			}
		}
	}
	return nil
}

func (m *Matrix) Len() int {
	return len(m.labels)
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return m.data.Dims()
}

func (m *Matrix) At(i int, j int) float64 {
	return m.data.At(i, j)
}

func (m *Matrix) Labels() []string {
	ret := make([]string, len(m.labels))
	copy(ret, m.labels)
	return ret
}

// Index returns the row of label, or -1.
func (m *Matrix) Index(label string) int {
	i, ok := m.index[label]
	if !ok {
		return -1
	}
	return i
}

// Distance looks up the distance between two labels.
func (m *Matrix) Distance(a string, b string) (float64, error) {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 {
		return 0, fmt.Errorf("unknown label in (%s,%s): %w", a, b, datatypes.ErrInvalidInput)
	}
	return m.data.At(i, j), nil
}

// Symmetric exposes the matrix to gonum.
func (m *Matrix) Symmetric() mat.Symmetric {
	return m.data
}

// Rows returns a row-major copy.
func (m *Matrix) Rows() [][]float64 {
	n := m.Len()
	ret := make([][]float64, n)
	for i := range ret {
		ret[i] = make([]float64, n)
		for j := range ret[i] {
			ret[i][j] = m.data.At(i, j)
		}
	}
	return ret
}

// Validate rechecks the matrix contents, e.g. after it was decoded.
func (m *Matrix) Validate(tol float64) error {
	if len(m.labels) != m.data.SymmetricDim() {
		return fmt.Errorf("%d labels for %d rows: %w", len(m.labels), m.data.SymmetricDim(), datatypes.ErrInvalidInput)
	}
	return ValidateMatrix(m.Rows(), tol)
}

type matrixJSON struct {
	Labels []string    `json:"labels"`
	Rows   [][]float64 `json:"rows"`
}

func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{Labels: m.labels, Rows: m.Rows()})
}

func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewMatrix(raw.Labels, raw.Rows, DEFAULT_TOLERANCE)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}
