package distance

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kpaschen/seqcluster/lib/datatypes"
)

const DEFAULT_TABLE_FORMAT = "%1.3f"

// WriteTable writes m as a whitespace-delimited N×N table, one row per line.
// With labels set, a "# " header line lists the row labels first.
func WriteTable(w io.Writer, m *Matrix, format string, labels bool) error {
	if format == "" {
		format = DEFAULT_TABLE_FORMAT
	}
	bw := bufio.NewWriter(w)
	if labels {
		if _, err := fmt.Fprintf(bw, "# %s\n", strings.Join(m.labels, " ")); err != nil {
			return err
		}
	}
	n := m.Len()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(bw, format, m.At(i, j)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTable parses a table written by WriteTable. Labels come from the "#"
// header line if there is one, otherwise they are nil. Blank lines are skipped.
// The rows are not validated.
func ReadTable(r io.Reader) ([]string, [][]float64, error) {
	var labels []string
	var rows [][]float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if labels == nil && len(rows) == 0 {
				labels = strings.Fields(strings.TrimPrefix(line, "#"))
			}
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d, column %d: %v: %w", lineNo, i+1, err, datatypes.ErrInvalidInput)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if labels != nil && len(labels) != len(rows) {
		return nil, nil, fmt.Errorf("header has %d labels for %d rows: %w", len(labels), len(rows), datatypes.ErrInvalidInput)
	}
	return labels, rows, nil
}

// LoadTable reads a table and turns it into a validated Matrix. Tables
// without a header get their row indexes as labels.
func LoadTable(r io.Reader, tol float64) (*Matrix, error) {
	labels, rows, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = DefaultLabels(len(rows))
	}
	return NewMatrix(labels, rows, tol)
}
