package explorer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExplorer(t *testing.T) *ClusterExplorer {
	t.Helper()
	m, err := distance.NewMatrix([]string{"a", "b", "c"}, [][]float64{
		{0, 0.1, 0.9},
		{0.1, 0, 0.8},
		{0.9, 0.8, 0},
	}, distance.DEFAULT_TOLERANCE)
	require.NoError(t, err)
	tree, err := cluster.Cluster(m)
	require.NoError(t, err)

	c := NewClusterExplorer("", distance.DEFAULT_TOLERANCE)
	require.NoError(t, c.Initialize(0))
	c.AddResult("first", &lib.Result{Matrix: m, Tree: tree, Oracle: "zlib-6", Finished: time.Now()})
	return c
}

func get(t *testing.T, c *ClusterExplorer, target string, resp interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if resp != nil && rec.Code == http.StatusOK {
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	}
	return rec
}

func TestGetLabelsAndMatrix(t *testing.T) {
	c := testExplorer(t)

	var labels labelsResponse
	rec := get(t, c, "/labels", &labels)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, labels.Labels)
	assert.Equal(t, "first", labels.Run)

	var matrix matrixResponse
	rec = get(t, c, "/matrix?run=first", &matrix)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.8, matrix.Rows[2][1])
}

func TestGetTreeAndLinkage(t *testing.T) {
	c := testExplorer(t)

	var tree treeResponse
	rec := get(t, c, "/tree", &tree)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, tree.Leaves)
	assert.Equal(t, 0.8, tree.Tree.Height)

	var linkage linkageResponse
	rec = get(t, c, "/linkage", &linkage)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []cluster.LinkageRow{
		{A: 0, B: 1, Height: 0.1, Size: 2},
		{A: 2, B: 3, Height: 0.8, Size: 3},
	}, linkage.Linkage)

	rec = get(t, c, "/newick", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "((a:0.1,b:0.1):0.7000000000000001,c:0.8);\n", rec.Body.String())
}

func TestGetClusters(t *testing.T) {
	c := testExplorer(t)

	var clusters clustersResponse
	rec := get(t, c, "/clusters?height=0.5", &clusters)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, clusters.Clusters)

	assert.Equal(t, http.StatusBadRequest, get(t, c, "/clusters", nil).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, c, "/clusters?height=high", nil).Code)
}

func TestGetDistance(t *testing.T) {
	c := testExplorer(t)

	var d distanceResponse
	rec := get(t, c, "/distance?a=c&b=a", &d)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.9, d.Distance)
	assert.Equal(t, 0.8, d.MergeHeight)

	assert.Equal(t, http.StatusNotFound, get(t, c, "/distance?a=c&b=z", nil).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, c, "/distance?a=c", nil).Code)
}

func TestUnknownRun(t *testing.T) {
	c := testExplorer(t)
	assert.Equal(t, http.StatusNotFound, get(t, c, "/tree?run=second", nil).Code)

	empty := NewClusterExplorer("", distance.DEFAULT_TOLERANCE)
	assert.Equal(t, http.StatusNotFound, get(t, empty, "/labels", nil).Code)
}

func TestRunCache(t *testing.T) {
	c := testExplorer(t)
	latest := c.getRun("")
	for i := 0; i < RUN_CACHE_SIZE+2; i++ {
		c.AddResult(strings.Repeat("x", i+1), latest.result)
	}
	var runs runListResponse
	get(t, c, "/runs", &runs)
	assert.Len(t, runs.Runs, RUN_CACHE_SIZE)
	assert.Nil(t, c.getRun("first"))
	assert.Equal(t, strings.Repeat("x", RUN_CACHE_SIZE+2), c.getRun("").Name)

	// Same name replaces.
	c.AddResult("x", latest.result)
	assert.Len(t, c.runs(), RUN_CACHE_SIZE)
}

func TestScanResultFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seqs_distances.txt"),
		[]byte("# a b c\n0 0.1 0.9\n0.1 0 0.8\n0.9 0.8 0\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken_distances.txt"),
		[]byte("0 1\n2 0\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))

	c := NewClusterExplorer(dir, distance.DEFAULT_TOLERANCE)
	require.NoError(t, c.Initialize(time.Hour))
	defer c.Shutdown()

	runs := c.runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "seqs", runs[0].Name)
	assert.Equal(t, 3, runs[0].Items)

	// Rescanning does not add the same table twice.
	require.NoError(t, c.scanResultFiles())
	assert.Len(t, c.runs(), 1)

	var clusters clustersResponse
	get(t, c, "/clusters?run=seqs&height=0.1", &clusters)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, clusters.Clusters)
}

func TestRescanKeepsAddedRun(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "seqs_distances.txt")
	require.NoError(t, os.WriteFile(table,
		[]byte("# a b c\n0 0.123 0.9\n0.123 0 0.8\n0.9 0.8 0\n"), 0644))

	c := NewClusterExplorer(dir, distance.DEFAULT_TOLERANCE)
	require.NoError(t, c.Initialize(0))

	m, err := distance.NewMatrix([]string{"a", "b", "c"}, [][]float64{
		{0, 0.12345, 0.9},
		{0.12345, 0, 0.8},
		{0.9, 0.8, 0},
	}, distance.DEFAULT_TOLERANCE)
	require.NoError(t, err)
	tree, err := cluster.Cluster(m)
	require.NoError(t, err)
	c.AddResult("seqs", &lib.Result{Matrix: m, Tree: tree, Oracle: "zlib-6", Finished: time.Now()})

	require.NoError(t, c.scanResultFiles())
	run := c.getRun("seqs")
	require.NotNil(t, run)
	assert.Equal(t, "zlib-6", run.Oracle)
	d, err := run.result.Matrix.Distance("a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.12345, d)

	// A table written after the run replaces it.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(table, later, later))
	require.NoError(t, c.scanResultFiles())
	run = c.getRun("seqs")
	require.NotNil(t, run)
	assert.Empty(t, run.Oracle)
	d, err = run.result.Matrix.Distance("a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.123, d)
}

func TestMetricsEndpoint(t *testing.T) {
	c := testExplorer(t)
	rec := get(t, c, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
