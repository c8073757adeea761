package explorer

import (
	"time"

	"github.com/kpaschen/seqcluster/lib"
)

// A Run is one clustering result the explorer can serve.
type Run struct {
	Name     string    `json:"name"`
	Items    int       `json:"items"`
	Oracle   string    `json:"oracle,omitempty"`
	Variant  string    `json:"variant,omitempty"`
	Finished time.Time `json:"finished"`
	// Filename is the distance table in the results directory that holds
	// this run.
	Filename string `json:"filename,omitempty"`

	result *lib.Result
	// Tables modified after this are newer than the run.
	loaded time.Time
}
