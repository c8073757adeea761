package reporter

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// A SetReporter cuts the dendrogram at the configured height and writes
// the flat clusters, one (label, cluster) row per item.
type SetReporter struct {
	path     string
	height   float64
	clusters [][]string
}

func (r *SetReporter) Initialize(config settings.SeqclusterSettings, name string) error {
	path, err := resultsPath(config, name, "clusters.csv")
	if err != nil {
		return err
	}
	r.path = path
	r.height = config.CutHeight
	return nil
}

func (r *SetReporter) Report(result *lib.Result) error {
	r.clusters = cluster.Cut(result.Tree, r.height)
	return nil
}

func (r *SetReporter) Flush() error {
	if r.clusters == nil {
		return nil
	}
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	for i, members := range r.clusters {
		if len(members) > 1 {
			log.WithFields(log.Fields{
				"cluster": i,
				"members": members,
			}).Debug("cluster")
		}
		for _, label := range members {
			if err := writer.Write([]string{label, strconv.Itoa(i)}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"height":   r.height,
		"clusters": len(r.clusters),
		"file":     r.path,
	}).Info("wrote flat clusters")
	r.clusters = nil
	return file.Close()
}
