package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// A CsvReporter writes one row per pair (first, second, distance) and a
// separate file mapping matrix rows to labels.
type CsvReporter struct {
	pairsPath string
	idsPath   string
}

func (c *CsvReporter) Initialize(config settings.SeqclusterSettings, name string) error {
	var err error
	if c.pairsPath, err = resultsPath(config, name, "distances.csv"); err != nil {
		return err
	}
	c.idsPath, err = resultsPath(config, name, "ids.csv")
	return err
}

func (c *CsvReporter) recordIds(labels []string) error {
	file, err := os.Create(c.idsPath)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	for i, label := range labels {
		if err := writer.Write([]string{strconv.Itoa(i), label}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func (c *CsvReporter) Report(result *lib.Result) error {
	labels := result.Matrix.Labels()
	if err := c.recordIds(labels); err != nil {
		return err
	}

	file, err := os.Create(c.pairsPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"first", "second", "distance"}); err != nil {
		return err
	}
	ctr := 0
	for i := range labels {
		for j := i + 1; j < len(labels); j++ {
			record := []string{labels[i], labels[j], fmt.Sprintf("%f", result.Matrix.At(i, j))}
			if err := writer.Write(record); err != nil {
				return err
			}
			ctr++
			if ctr%1000 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return err
				}
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file":  c.pairsPath,
		"pairs": ctr,
	}).Info("wrote pair distances")
	return file.Close()
}

// Flush is a noop. This reporter does no internal buffering.
func (c *CsvReporter) Flush() error {
	return nil
}
