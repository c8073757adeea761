package reporter

import (
	"os"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// A TableReporter writes the distance matrix as a whitespace-delimited
// table. The "#" label header is a comment line for most table readers.
type TableReporter struct {
	path   string
	format string
}

func (t *TableReporter) Initialize(config settings.SeqclusterSettings, name string) error {
	path, err := resultsPath(config, name, "distances.txt")
	if err != nil {
		return err
	}
	t.path = path
	t.format = config.TableFormat
	return nil
}

func (t *TableReporter) Report(result *lib.Result) error {
	file, err := os.Create(t.path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := distance.WriteTable(file, result.Matrix, t.format, true); err != nil {
		return err
	}
	log.WithField("file", t.path).Info("wrote distance table")
	return file.Close()
}

// Flush is a noop, Report writes the whole file.
func (t *TableReporter) Flush() error {
	return nil
}
