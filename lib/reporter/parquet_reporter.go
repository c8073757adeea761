package reporter

import (
	"fmt"
	"os"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/settings"
	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"
)

// A PairDistance is one row of the parquet report. Every unordered pair
// appears once, with ID < Other.
type PairDistance struct {
	ID         int     `parquet:"id"`
	Other      int     `parquet:"other"`
	Label      string  `parquet:"label,zstd"`
	OtherLabel string  `parquet:"otherLabel,zstd"`
	Distance   float64 `parquet:"distance"`
	// Height at which the pair first shares a cluster in the dendrogram.
	MergeHeight float64 `parquet:"mergeHeight"`
	Oracle      string  `parquet:"oracle,dict"`
}

type ParquetReporter struct {
	path               string
	file               *os.File
	writer             *parquet.GenericWriter[PairDistance]
	maxRowsPerRowGroup int64
}

func (r *ParquetReporter) Initialize(config settings.SeqclusterSettings, name string) error {
	path, err := resultsPath(config, name, "distances.pq")
	if err != nil {
		return err
	}
	r.path = path
	r.maxRowsPerRowGroup = config.MaxRowsPerRowGroup
	return nil
}

func extractRowsFromResult(result *lib.Result) []PairDistance {
	labels := result.Matrix.Labels()
	coph := cluster.Cophenetic(result.Tree)
	n := len(labels)
	ret := make([]PairDistance, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ret = append(ret, PairDistance{
				ID:          i,
				Other:       j,
				Label:       labels[i],
				OtherLabel:  labels[j],
				Distance:    result.Matrix.At(i, j),
				MergeHeight: coph[i][j],
				Oracle:      result.Oracle,
			})
		}
	}
	return ret
}

func (r *ParquetReporter) Report(result *lib.Result) error {
	if r.writer == nil {
		file, err := os.Create(r.path)
		if err != nil {
			return err
		}
		r.file = file
		r.writer = parquet.NewGenericWriter[PairDistance](file,
			parquet.MaxRowsPerRowGroup(r.maxRowsPerRowGroup))
	}
	rows := extractRowsFromResult(result)
	n, err := r.writer.Write(rows)
	if err != nil {
		return err
	}
	if n != len(rows) {
		return fmt.Errorf("wrote %d of %d rows", n, len(rows))
	}
	log.WithFields(log.Fields{
		"file": r.path,
		"rows": n,
	}).Info("wrote parquet rows")
	return nil
}

// Flush closes the file; the parquet footer is only written then.
func (r *ParquetReporter) Flush() error {
	if r.writer == nil {
		return nil
	}
	defer func() {
		r.writer = nil
		r.file = nil
	}()
	if err := r.writer.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
