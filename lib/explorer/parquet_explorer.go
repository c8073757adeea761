// Package explorer reads distance reports back from parquet files.
package explorer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/reporter"
	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"
)

const readBatch = 100

type ParquetExplorer struct {
	filenameBase  string
	osFile        *os.File
	file          *parquet.File
	idIndex       int
	otherIndex    int
	distanceIndex int
}

func NewParquetExplorer(filenameBase string) *ParquetExplorer {
	return &ParquetExplorer{
		filenameBase:  filenameBase,
		idIndex:       -1,
		otherIndex:    -1,
		distanceIndex: -1,
	}
}

func (p *ParquetExplorer) Initialize(filename string) error {
	schema := parquet.SchemaOf(reporter.PairDistance{})
	for _, path := range schema.Columns() {
		if len(path) != 1 {
			continue
		}
		leaf, _ := schema.Lookup(path...)
		switch path[0] {
		case "id":
			p.idIndex = leaf.ColumnIndex
		case "other":
			p.otherIndex = leaf.ColumnIndex
		case "distance":
			p.distanceIndex = leaf.ColumnIndex
		}
	}
	if p.idIndex < 0 || p.otherIndex < 0 || p.distanceIndex < 0 {
		return fmt.Errorf("bad schema: missing columns for id, other, or distance")
	}

	path := filepath.Join(p.filenameBase, filename)
	pqfile, err := os.Open(path)
	if err != nil {
		return err
	}
	stat, err := pqfile.Stat()
	if err != nil {
		pqfile.Close()
		return err
	}
	p.file, err = parquet.OpenFile(pqfile, stat.Size())
	if err != nil {
		pqfile.Close()
		log.WithError(err).WithField("file", path).Warn("failed to open parquet file")
		return err
	}
	p.osFile = pqfile
	return nil
}

func (p *ParquetExplorer) Close() error {
	if p.osFile == nil {
		return nil
	}
	err := p.osFile.Close()
	p.osFile = nil
	p.file = nil
	return err
}

// readAll hands every row to visit, in file order.
func (p *ParquetExplorer) readAll(visit func(row *reporter.PairDistance)) error {
	if p.file == nil {
		return fmt.Errorf("parquet explorer has no parquet file")
	}
	reader := parquet.NewGenericReader[reporter.PairDistance](p.file)
	defer reader.Close()
	rows := make([]reporter.PairDistance, readBatch)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			visit(&rows[i])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// LookupItem returns every row that has item id as its first member. It
// seeks to the first page whose column index says it can contain id and
// reads on from there.
func (p *ParquetExplorer) LookupItem(id int) ([]reporter.PairDistance, error) {
	if p.file == nil {
		return nil, fmt.Errorf("parquet explorer has no parquet file")
	}
	var ret []reporter.PairDistance
	rowStart := int64(0)
	for _, rg := range p.file.RowGroups() {
		groupStart := rowStart
		rowStart += rg.NumRows()

		idchunk := rg.ColumnChunks()[p.idIndex]
		ididx, err := idchunk.ColumnIndex()
		if err != nil {
			return p.scanItem(id)
		}
		found := parquet.Find(ididx, parquet.ValueOf(id),
			parquet.CompareNullsLast(idchunk.Type().Compare))
		if found == ididx.NumPages() {
			continue
		}
		offsetidx, err := idchunk.OffsetIndex()
		if err != nil {
			return p.scanItem(id)
		}
		reader := parquet.NewGenericReader[reporter.PairDistance](p.file)
		if err := reader.SeekToRow(groupStart + offsetidx.FirstRowIndex(found)); err != nil {
			reader.Close()
			return nil, err
		}
		rows := make([]reporter.PairDistance, readBatch)
		for done := false; !done; {
			n, err := reader.Read(rows)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					reader.Close()
					return nil, err
				}
				done = true
			}
			for i := 0; i < n; i++ {
				// Rows are sorted by id, so the first larger id ends the search.
				if rows[i].ID > id {
					done = true
					break
				}
				if rows[i].ID == id {
					ret = append(ret, rows[i])
				}
			}
		}
		// The read above ran past this row group until the ids got larger,
		// so later row groups have nothing new.
		reader.Close()
		return ret, nil
	}
	return ret, nil
}

// scanItem is LookupItem for files written without page indexes.
func (p *ParquetExplorer) scanItem(id int) ([]reporter.PairDistance, error) {
	var ret []reporter.PairDistance
	err := p.readAll(func(row *reporter.PairDistance) {
		if row.ID == id {
			ret = append(ret, *row)
		}
	})
	return ret, err
}

// ReadMatrix rebuilds the distance matrix from the pair rows.
func (p *ParquetExplorer) ReadMatrix(tol float64) (*distance.Matrix, error) {
	labels := make(map[int]string)
	var pairs []reporter.PairDistance
	err := p.readAll(func(row *reporter.PairDistance) {
		labels[row.ID] = row.Label
		labels[row.Other] = row.OtherLabel
		pairs = append(pairs, *row)
	})
	if err != nil {
		return nil, err
	}
	n := len(labels)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		label, ok := labels[i]
		if !ok {
			return nil, fmt.Errorf("no label for row %d: %w", i, datatypes.ErrInvalidInput)
		}
		names[i] = label
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	seen := 0
	for _, pair := range pairs {
		if pair.ID >= n || pair.Other >= n || pair.ID == pair.Other {
			return nil, fmt.Errorf("bad pair (%d,%d): %w", pair.ID, pair.Other, datatypes.ErrInvalidInput)
		}
		rows[pair.ID][pair.Other] = pair.Distance
		rows[pair.Other][pair.ID] = pair.Distance
		seen++
	}
	if seen != n*(n-1)/2 {
		return nil, fmt.Errorf("%d pairs for %d items: %w", seen, n, datatypes.ErrMissingMeasurement)
	}
	return distance.NewMatrix(names, rows, tol)
}
