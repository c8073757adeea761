// Package kafka holds the messages exchanged between the kafka engine and
// its workers.
package kafka

import (
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
)

// A JobMessage carries a batch of measurements for a worker. The settings
// travel along so the worker builds the same oracle as the sender.
type JobMessage struct {
	RunID  string                      `json:"run_id"`
	Config settings.SeqclusterSettings `json:"config"`
	Jobs   []datatypes.MeasureJob      `json:"jobs"`
}

// A SizeMessage answers one JobMessage. Results with a non-empty Error
// failed on the worker.
type SizeMessage struct {
	RunID   string                    `json:"run_id"`
	Results []datatypes.MeasureResult `json:"results"`
}
