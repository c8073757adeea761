package reporter

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

// TreeDocument is the json form of a dendrogram.
type TreeDocument struct {
	Oracle  string               `json:"oracle"`
	Variant settings.Variant     `json:"variant"`
	Labels  []string             `json:"labels"`
	Leaves  []string             `json:"leaves"`
	Linkage []cluster.LinkageRow `json:"linkage"`
	Tree    *cluster.MergeNode   `json:"tree"`
}

func NewTreeDocument(result *lib.Result) *TreeDocument {
	return &TreeDocument{
		Oracle:  result.Oracle,
		Variant: result.Variant,
		Labels:  result.Matrix.Labels(),
		Leaves:  cluster.Leaves(result.Tree),
		Linkage: cluster.LinkageMatrix(result.Tree),
		Tree:    result.Tree,
	}
}

// A TreeReporter writes the dendrogram in newick or json format.
type TreeReporter struct {
	format string
	path   string
}

func NewTreeReporter(format string) *TreeReporter {
	return &TreeReporter{format: format}
}

func (t *TreeReporter) Initialize(config settings.SeqclusterSettings, name string) error {
	var suffix string
	switch t.format {
	case REPORT_NEWICK:
		suffix = "tree.nwk"
	case REPORT_JSON:
		suffix = "tree.json"
	default:
		return fmt.Errorf("unknown tree format %q", t.format)
	}
	path, err := resultsPath(config, name, suffix)
	if err != nil {
		return err
	}
	t.path = path
	return nil
}

func (t *TreeReporter) Report(result *lib.Result) error {
	var data []byte
	if t.format == REPORT_NEWICK {
		data = []byte(cluster.Newick(result.Tree) + "\n")
	} else {
		var err error
		data, err = json.MarshalIndent(NewTreeDocument(result), "", "  ")
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(t.path, data, 0640); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file":   t.path,
		"format": t.format,
	}).Info("wrote tree")
	return nil
}

func (t *TreeReporter) Flush() error {
	return nil
}
