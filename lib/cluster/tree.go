// Package cluster builds a single-linkage dendrogram from a distance matrix.
package cluster

// A MergeNode is either a leaf, standing for one row of the distance matrix,
// or an internal node joining two subtrees at Height.
//
// Leaves have IDs 0..N-1 (their matrix row). The k-th merge gets ID N+k.
type MergeNode struct {
	ID     int        `json:"id"`
	Label  string     `json:"label,omitempty"`
	Leaf   int        `json:"leaf"`
	Left   *MergeNode `json:"left,omitempty"`
	Right  *MergeNode `json:"right,omitempty"`
	Height float64    `json:"height"`
	Size   int        `json:"size"`
}

func newLeaf(index int, label string) *MergeNode {
	return &MergeNode{
		ID:    index,
		Label: label,
		Leaf:  index,
		Size:  1,
	}
}

func newMerge(id int, left *MergeNode, right *MergeNode, height float64) *MergeNode {
	return &MergeNode{
		ID:     id,
		Leaf:   -1,
		Left:   left,
		Right:  right,
		Height: height,
		Size:   left.Size + right.Size,
	}
}

func (n *MergeNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Walk visits the tree depth first, left before right, parents before
// children. It stops descending where visit returns false.
func (n *MergeNode) Walk(visit func(node *MergeNode) bool) {
	if n == nil || !visit(n) {
		return
	}
	n.Left.Walk(visit)
	n.Right.Walk(visit)
}

// Leaves returns the leaf labels in dendrogram order.
func Leaves(root *MergeNode) []string {
	ret := make([]string, 0, root.Size)
	root.Walk(func(node *MergeNode) bool {
		if node.IsLeaf() {
			ret = append(ret, node.Label)
		}
		return true
	})
	return ret
}

func leafIndexes(root *MergeNode) []int {
	ret := make([]int, 0, root.Size)
	root.Walk(func(node *MergeNode) bool {
		if node.IsLeaf() {
			ret = append(ret, node.Leaf)
		}
		return true
	})
	return ret
}

// Internal returns the merge nodes ordered by ID, i.e. in merge order.
func Internal(root *MergeNode) []*MergeNode {
	if root == nil || root.IsLeaf() {
		return nil
	}
	leaves := root.Size
	ret := make([]*MergeNode, leaves-1)
	root.Walk(func(node *MergeNode) bool {
		if !node.IsLeaf() {
			ret[node.ID-leaves] = node
		}
		return true
	})
	return ret
}

// maxHeight is the largest merge height in the subtree. It differs from
// Height only for trees built from non-metric input.
func maxHeight(root *MergeNode) float64 {
	ret := root.Height
	root.Walk(func(node *MergeNode) bool {
		if !node.IsLeaf() && node.Height > ret {
			ret = node.Height
		}
		return true
	})
	return ret
}
