package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/pairs"
	"github.com/kpaschen/seqcluster/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

func matrix(t *testing.T, labels []string, rows [][]float64) *distance.Matrix {
	t.Helper()
	m, err := distance.NewMatrix(labels, rows, distance.DEFAULT_TOLERANCE)
	require.NoError(t, err)
	return m
}

var threeByThree = [][]float64{
	{0, 0.1, 0.9},
	{0.1, 0, 0.8},
	{0.9, 0.8, 0},
}

func TestThreeLeaves(t *testing.T) {
	root, err := Cluster(matrix(t, []string{"a", "b", "c"}, threeByThree))
	require.NoError(t, err)

	assert.Equal(t, 0.8, root.Height)
	assert.Equal(t, 3, root.Size)
	assert.Equal(t, 4, root.ID)
	assert.Equal(t, "c", root.Right.Label)

	first := root.Left
	assert.Equal(t, 0.1, first.Height)
	assert.Equal(t, 3, first.ID)
	assert.Equal(t, "a", first.Left.Label)
	assert.Equal(t, "b", first.Right.Label)

	assert.Equal(t, []LinkageRow{
		{A: 0, B: 1, Height: 0.1, Size: 2},
		{A: 2, B: 3, Height: 0.8, Size: 3},
	}, LinkageMatrix(root))
	assert.Equal(t, "((a:0.1,b:0.1):0.7000000000000001,c:0.8);", Newick(root))
}

func TestNonSymmetricMatrix(t *testing.T) {
	_, err := ClusterRows([]string{"a", "b", "c"}, [][]float64{
		{0, 0.1, 0.9},
		{0.2, 0, 0.8},
		{0.9, 0.8, 0},
	})
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)
	var stageErr *datatypes.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, datatypes.STAGE_CLUSTER, stageErr.Stage)
}

func TestInvalidInput(t *testing.T) {
	_, err := ClusterRows([]string{"a", "b"}, [][]float64{{0.5, 1}, {1, 0}})
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)

	_, err = ClusterRows([]string{"a", "b"}, [][]float64{{0, 1, 2}, {1, 0, 3}})
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)

	_, err = ClusterRows([]string{"a"}, [][]float64{{0}}, WithLinkage("average"))
	assert.ErrorIs(t, err, datatypes.ErrUnsupportedConfiguration)

	_, err = Cluster(nil)
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)
}

func TestTolerance(t *testing.T) {
	rows := [][]float64{{0, 0.5}, {0.5001, 0}}
	_, err := ClusterRows([]string{"a", "b"}, rows)
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)

	root, err := ClusterRows([]string{"a", "b"}, rows, WithTolerance(0.001))
	require.NoError(t, err)
	assert.Equal(t, 0.5, root.Height)
}

func TestSingleLeaf(t *testing.T) {
	root, err := Cluster(matrix(t, []string{"only"}, [][]float64{{0}}))
	require.NoError(t, err)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, "only", root.Label)
	assert.Empty(t, LinkageMatrix(root))
	assert.Equal(t, "only;", Newick(root))
	assert.Equal(t, [][]string{{"only"}}, Cut(root, 0))
}

func TestTieBreak(t *testing.T) {
	rows := [][]float64{
		{0, 1, 1, 1},
		{1, 0, 1, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 0},
	}
	root, err := Cluster(matrix(t, []string{"a", "b", "c", "d"}, rows))
	require.NoError(t, err)
	assert.Equal(t, []LinkageRow{
		{A: 0, B: 1, Height: 1, Size: 2},
		{A: 2, B: 4, Height: 1, Size: 3},
		{A: 3, B: 5, Height: 1, Size: 4},
	}, LinkageMatrix(root))
	assert.Equal(t, []string{"a", "b", "c", "d"}, Leaves(root))

	// (c,d) and (a,b) tie; (a,b) has the smaller leaf pair.
	rows = [][]float64{
		{0, 0.2, 0.9, 0.9},
		{0.2, 0, 0.9, 0.9},
		{0.9, 0.9, 0, 0.2},
		{0.9, 0.9, 0.2, 0},
	}
	root, err = Cluster(matrix(t, []string{"a", "b", "c", "d"}, rows))
	require.NoError(t, err)
	z := LinkageMatrix(root)
	assert.Equal(t, LinkageRow{A: 0, B: 1, Height: 0.2, Size: 2}, z[0])
	assert.Equal(t, LinkageRow{A: 2, B: 3, Height: 0.2, Size: 2}, z[1])
	assert.Equal(t, LinkageRow{A: 4, B: 5, Height: 0.9, Size: 4}, z[2])
}

// tenLeaves is an arbitrary non-metric matrix.
func tenLeaves() ([]string, [][]float64) {
	labels := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"}
	rows := make([][]float64, len(labels))
	for i := range rows {
		rows[i] = make([]float64, len(labels))
	}
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			d := math.Mod(float64((i+3)*(j+7)*37), 101)/50 - 0.3
			rows[i][j] = d
			rows[j][i] = d
		}
	}
	return labels, rows
}

func TestTreeShape(t *testing.T) {
	labels, rows := tenLeaves()
	root, err := ClusterRows(labels, rows)
	require.NoError(t, err)

	leaves, internal := 0, 0
	root.Walk(func(node *MergeNode) bool {
		if node.IsLeaf() {
			leaves++
		} else {
			internal++
			assert.NotNil(t, node.Left)
			assert.NotNil(t, node.Right)
			assert.Equal(t, node.Left.Size+node.Right.Size, node.Size)
		}
		return true
	})
	assert.Equal(t, 10, leaves)
	assert.Equal(t, 9, internal)
	assert.ElementsMatch(t, labels, Leaves(root))
}

func TestIdempotent(t *testing.T) {
	labels, rows := tenLeaves()
	m := matrix(t, labels, rows)
	first, err := Cluster(m)
	require.NoError(t, err)
	second, err := Cluster(m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, rows, m.Rows())
}

func TestMergeHeightsMatchMinimumSpanningTree(t *testing.T) {
	labels, rows := tenLeaves()
	root, err := ClusterRows(labels, rows)
	require.NoError(t, err)

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := range rows {
		g.AddNode(simple.Node(i))
	}
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), rows[i][j]))
		}
	}
	mst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	want := path.Kruskal(mst, g)

	got := 0.0
	for _, row := range LinkageMatrix(root) {
		got += row.Height
	}
	assert.InDelta(t, want, got, 1e-9)
}

// ultrametric comes from the tree ((a,b):0.2,(c,(d,e):0.1):0.3) joined at 0.7.
func ultrametric() ([]string, [][]float64) {
	return []string{"a", "b", "c", "d", "e"}, [][]float64{
		{0, 0.2, 0.7, 0.7, 0.7},
		{0.2, 0, 0.7, 0.7, 0.7},
		{0.7, 0.7, 0, 0.3, 0.3},
		{0.7, 0.7, 0.3, 0, 0.1},
		{0.7, 0.7, 0.3, 0.1, 0},
	}
}

func TestUltrametricHeightsIncreaseTowardsRoot(t *testing.T) {
	labels, rows := ultrametric()
	m := matrix(t, labels, rows)
	root, err := Cluster(m)
	require.NoError(t, err)

	root.Walk(func(node *MergeNode) bool {
		for _, child := range []*MergeNode{node.Left, node.Right} {
			if child != nil {
				assert.LessOrEqual(t, child.Height, node.Height)
			}
		}
		return true
	})
	assert.Equal(t, rows, Cophenetic(root))

	c, err := CopheneticCorrelation(root, m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-12)
}

func TestCut(t *testing.T) {
	labels, rows := ultrametric()
	root, err := Cluster(matrix(t, labels, rows))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}, Cut(root, 0.05))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"d", "e"}}, Cut(root, 0.2))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d", "e"}}, Cut(root, 0.5))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, Cut(root, 1))

	assignment := Assignment(Cut(root, 0.2))
	assert.Equal(t, assignment["d"], assignment["e"])
	assert.NotEqual(t, assignment["a"], assignment["c"])

	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.7}, Heights(root))
}

func TestCopheneticCorrelationErrors(t *testing.T) {
	m := matrix(t, []string{"a", "b"}, [][]float64{{0, 1}, {1, 0}})
	root, err := Cluster(m)
	require.NoError(t, err)
	_, err = CopheneticCorrelation(root, m)
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)

	labels, rows := ultrametric()
	_, err = CopheneticCorrelation(root, matrix(t, labels, rows))
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)
}

func TestNewickQuotesLabels(t *testing.T) {
	root, err := ClusterRows([]string{"seq one", "it's"}, [][]float64{{0, 0.5}, {0.5, 0}})
	require.NoError(t, err)
	assert.Equal(t, "('seq one':0.5,'it''s':0.5);", Newick(root))
}

func TestIdenticalSequencesMergeFirst(t *testing.T) {
	items, err := datatypes.NewItemSet([]datatypes.Item{
		{ID: "A", Payload: []byte("AAAA")},
		{ID: "B", Payload: []byte("AAAA")},
		{ID: "C", Payload: []byte("TTTT")},
	})
	require.NoError(t, err)
	joined, err := pairs.BuildPairs(items)
	require.NoError(t, err)
	oracle, err := compressor.NewZlib(0)
	require.NoError(t, err)

	ctx := context.Background()
	m := datatypes.NewMeasurements()
	for _, id := range items.IDs() {
		size, err := oracle.Measure(ctx, items.At(items.Index(id)).Payload)
		require.NoError(t, err)
		m.Single[id] = size
	}
	for key, payload := range joined {
		size, err := oracle.Measure(ctx, payload)
		require.NoError(t, err)
		m.Pair[key] = size
	}

	dm, err := distance.BuildMatrix(m, items.IDs(), settings.VARIANT_CONCAT)
	require.NoError(t, err)
	root, err := Cluster(dm)
	require.NoError(t, err)

	rows := LinkageMatrix(root)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].A)
	assert.Equal(t, 1, rows[0].B)
	assert.Equal(t, 2, rows[0].Size)
	assert.Equal(t, 2, rows[1].A)
	assert.Equal(t, 3, rows[1].B)
	assert.Equal(t, []string{"A", "B", "C"}, Leaves(root))
}
