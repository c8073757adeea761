// Package reporter writes the results of a run to files.
package reporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
)

const (
	REPORT_TABLE    = "table"
	REPORT_CSV      = "csv"
	REPORT_PARQUET  = "parquet"
	REPORT_NEWICK   = "newick"
	REPORT_JSON     = "json"
	REPORT_CLUSTERS = "clusters"
)

type Reporter interface {
	// Initialize tells the reporter where to write. Files are named
	// <results directory>/<name>_<suffix>.
	Initialize(config settings.SeqclusterSettings, name string) error

	Report(result *lib.Result) error

	Flush() error
}

// NewReporters returns initialized reporters for config.Reports.
func NewReporters(config settings.SeqclusterSettings, name string) ([]Reporter, error) {
	ret := make([]Reporter, 0, len(config.Reports))
	for _, kind := range config.Reports {
		var r Reporter
		switch kind {
		case REPORT_TABLE:
			r = &TableReporter{}
		case REPORT_CSV:
			r = &CsvReporter{}
		case REPORT_PARQUET:
			r = &ParquetReporter{}
		case REPORT_NEWICK, REPORT_JSON:
			r = &TreeReporter{format: kind}
		case REPORT_CLUSTERS:
			r = &SetReporter{}
		default:
			return nil, datatypes.NewStageError(datatypes.STAGE_REPORT, kind,
				fmt.Errorf("unknown report: %w", datatypes.ErrUnsupportedConfiguration))
		}
		if err := r.Initialize(config, name); err != nil {
			return nil, datatypes.NewStageError(datatypes.STAGE_REPORT, kind, err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

// ReportAll hands result to every reporter and flushes them.
func ReportAll(reporters []Reporter, result *lib.Result) error {
	for _, r := range reporters {
		if err := r.Report(result); err != nil {
			return datatypes.NewStageError(datatypes.STAGE_REPORT, fmt.Sprintf("%T", r), err)
		}
		if err := r.Flush(); err != nil {
			return datatypes.NewStageError(datatypes.STAGE_REPORT, fmt.Sprintf("%T", r), err)
		}
	}
	return nil
}

func resultsPath(config settings.SeqclusterSettings, name string, suffix string) (string, error) {
	if err := os.MkdirAll(config.ResultsDirectory, 0750); err != nil {
		return "", err
	}
	return filepath.Join(config.ResultsDirectory, fmt.Sprintf("%s_%s", name, suffix)), nil
}
