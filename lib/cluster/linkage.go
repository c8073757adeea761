package cluster

import (
	"fmt"
	"time"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
)

type options struct {
	tolerance float64
	linkage   string
}

type Option func(*options)

// WithTolerance sets the bound for the symmetry and diagonal checks.
func WithTolerance(tol float64) Option {
	return func(o *options) {
		o.tolerance = tol
	}
}

// WithLinkage selects the linkage rule. Only single linkage is implemented.
func WithLinkage(linkage string) Option {
	return func(o *options) {
		o.linkage = linkage
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		tolerance: distance.DEFAULT_TOLERANCE,
		linkage:   settings.LINKAGE_SINGLE,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.linkage != settings.LINKAGE_SINGLE {
		return o, fmt.Errorf("linkage %q: %w", o.linkage, datatypes.ErrUnsupportedConfiguration)
	}
	return o, nil
}

// Cluster runs single-linkage agglomeration on m and returns the root.
//
// Each of the N-1 steps scans every pair of active clusters for the
// smallest distance, where the distance between clusters is the smallest
// leaf-level distance between their members. Equal distances are broken by
// the pair of smallest leaf indexes of the two clusters, compared
// lexicographically. The cluster holding the smaller leaf index becomes the
// left child. This is O(N³).
func Cluster(m *distance.Matrix, opts ...Option) (*MergeNode, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_CLUSTER, "", err)
	}
	if m == nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_CLUSTER, "",
			fmt.Errorf("no matrix: %w", datatypes.ErrInvalidInput))
	}
	if err := m.Validate(o.tolerance); err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_CLUSTER, "", err)
	}
	return agglomerate(m.Labels(), m.Rows()), nil
}

// ClusterRows validates a raw table and clusters it.
func ClusterRows(labels []string, rows [][]float64, opts ...Option) (*MergeNode, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_CLUSTER, "", err)
	}
	m, err := distance.NewMatrix(labels, rows, o.tolerance)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_CLUSTER, "", err)
	}
	return agglomerate(m.Labels(), m.Rows()), nil
}

// agglomerate expects a validated matrix. Cluster slot i always holds the
// cluster whose smallest leaf index is i, so scanning slots in order
// visits candidate pairs in tie-break order.
func agglomerate(labels []string, rows [][]float64) *MergeNode {
	start := time.Now()
	n := len(labels)
	nodes := make([]*MergeNode, n)
	active := make([]bool, n)
	for i := range nodes {
		nodes[i] = newLeaf(i, labels[i])
		active[i] = true
	}
	// rows is a private copy; it becomes the cluster distance table.
	dist := rows

	for step := 0; step < n-1; step++ {
		bestI, bestJ := -1, -1
		best := 0.0
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if bestI < 0 || dist[i][j] < best {
					bestI, bestJ, best = i, j, dist[i][j]
				}
			}
		}

		nodes[bestI] = newMerge(n+step, nodes[bestI], nodes[bestJ], best)
		nodes[bestJ] = nil
		active[bestJ] = false
		for k := 0; k < n; k++ {
			if !active[k] || k == bestI {
				continue
			}
			if dist[bestJ][k] < dist[bestI][k] {
				dist[bestI][k] = dist[bestJ][k]
				dist[k][bestI] = dist[bestJ][k]
			}
		}
	}

	log.WithFields(log.Fields{
		"leaves":   n,
		"duration": time.Since(start),
	}).Debug("single linkage complete")
	return nodes[0]
}
