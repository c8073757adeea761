package cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"gonum.org/v1/gonum/stat"
)

// A LinkageRow is one merge in the layout scipy uses for linkage matrices:
// A and B are the merged node IDs, smaller first.
type LinkageRow struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Height float64 `json:"height"`
	Size   int     `json:"size"`
}

// LinkageMatrix lists the merges in order. Leaves are 0..N-1, the k-th merge
// is N+k.
func LinkageMatrix(root *MergeNode) []LinkageRow {
	merges := Internal(root)
	ret := make([]LinkageRow, len(merges))
	for i, node := range merges {
		a, b := node.Left.ID, node.Right.ID
		if a > b {
			a, b = b, a
		}
		ret[i] = LinkageRow{A: a, B: b, Height: node.Height, Size: node.Size}
	}
	return ret
}

// Newick renders the tree in Newick format. Branch lengths are the height
// differences between a node and its parent; leaves sit at height 0.
func Newick(root *MergeNode) string {
	var b strings.Builder
	writeNewick(&b, root)
	b.WriteByte(';')
	return b.String()
}

func writeNewick(b *strings.Builder, node *MergeNode) {
	if node.IsLeaf() {
		b.WriteString(newickLabel(node.Label))
		return
	}
	b.WriteByte('(')
	for i, child := range []*MergeNode{node.Left, node.Right} {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNewick(b, child)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(node.Height-child.Height, 'g', -1, 64))
	}
	b.WriteByte(')')
}

func newickLabel(label string) string {
	if !strings.ContainsAny(label, " ()[]':;,") {
		return label
	}
	return "'" + strings.ReplaceAll(label, "'", "''") + "'"
}

// Cophenetic returns the N×N matrix of merge heights: entry (i,j) is the
// height at which leaves i and j first share a cluster.
func Cophenetic(root *MergeNode) [][]float64 {
	n := root.Size
	ret := make([][]float64, n)
	for i := range ret {
		ret[i] = make([]float64, n)
	}
	for _, node := range Internal(root) {
		left := leafIndexes(node.Left)
		right := leafIndexes(node.Right)
		for _, l := range left {
			for _, r := range right {
				ret[l][r] = node.Height
				ret[r][l] = node.Height
			}
		}
	}
	return ret
}

// CopheneticCorrelation is the Pearson correlation between the distances in
// m and the cophenetic distances of the tree, over all pairs i<j.
func CopheneticCorrelation(root *MergeNode, m *distance.Matrix) (float64, error) {
	n := m.Len()
	if root == nil || root.Size != n {
		return 0, fmt.Errorf("tree does not match a %d×%d matrix: %w", n, n, datatypes.ErrInvalidInput)
	}
	if n < 3 {
		return 0, fmt.Errorf("need at least 3 leaves, got %d: %w", n, datatypes.ErrInvalidInput)
	}
	coph := Cophenetic(root)
	x := make([]float64, 0, n*(n-1)/2)
	y := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x = append(x, m.At(i, j))
			y = append(y, coph[i][j])
		}
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0, fmt.Errorf("correlation undefined for constant distances: %w", datatypes.ErrInvalidInput)
	}
	return c, nil
}

// Cut returns the flat clusters left after undoing every merge above
// height. A subtree stays together if none of its merges is above height.
// Clusters come in dendrogram order.
func Cut(root *MergeNode, height float64) [][]string {
	var ret [][]string
	root.Walk(func(node *MergeNode) bool {
		if node.IsLeaf() || maxHeight(node) <= height {
			ret = append(ret, Leaves(node))
			return false
		}
		return true
	})
	return ret
}

// Assignment maps each label to the index of its cluster in Cut.
func Assignment(clusters [][]string) map[string]int {
	ret := make(map[string]int)
	for i, members := range clusters {
		for _, label := range members {
			ret[label] = i
		}
	}
	return ret
}

// Heights lists the distinct merge heights in increasing order. Cutting
// just below each of them gives every distinct flat clustering.
func Heights(root *MergeNode) []float64 {
	seen := make(map[float64]bool)
	var ret []float64
	for _, node := range Internal(root) {
		if !seen[node.Height] {
			seen[node.Height] = true
			ret = append(ret, node.Height)
		}
	}
	sort.Float64s(ret)
	return ret
}
