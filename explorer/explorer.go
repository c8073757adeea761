package explorer

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Types for the REST API
type runListResponse struct {
	Runs []Run `json:"runs"`
}

type labelsResponse struct {
	Run    string   `json:"run"`
	Labels []string `json:"labels"`
}

type matrixResponse struct {
	Run    string      `json:"run"`
	Labels []string    `json:"labels"`
	Rows   [][]float64 `json:"rows"`
}

type treeResponse struct {
	Run    string             `json:"run"`
	Leaves []string           `json:"leaves"`
	Tree   *cluster.MergeNode `json:"tree"`
}

type linkageResponse struct {
	Run     string               `json:"run"`
	Labels  []string             `json:"labels"`
	Linkage []cluster.LinkageRow `json:"linkage"`
}

type clustersResponse struct {
	Run      string     `json:"run"`
	Height   float64    `json:"height"`
	Clusters [][]string `json:"clusters"`
}

type distanceResponse struct {
	Run         string  `json:"run"`
	First       string  `json:"first"`
	Second      string  `json:"second"`
	Distance    float64 `json:"distance"`
	MergeHeight float64 `json:"mergeHeight"`
}

// Router wires the explorer handlers and the prometheus metrics endpoint.
func (c *ClusterExplorer) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/runs", c.GetRuns).Methods("GET")
	router.HandleFunc("/labels", c.GetLabels).Methods("GET")
	router.HandleFunc("/matrix", c.GetMatrix).Methods("GET")
	router.HandleFunc("/tree", c.GetTree).Methods("GET")
	router.HandleFunc("/newick", c.GetNewick).Methods("GET")
	router.HandleFunc("/linkage", c.GetLinkage).Methods("GET")
	router.HandleFunc("/clusters", c.GetClusters).Methods("GET")
	router.HandleFunc("/distance", c.GetDistance).Methods("GET")
	router.Handle("/metrics", promhttp.Handler())
	return router
}

func writeJSON(w http.ResponseWriter, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// lookupRun finds the run named by the "run" parameter, or the latest one.
// It writes a 404 and returns nil if there is none.
func (c *ClusterExplorer) lookupRun(w http.ResponseWriter, params url.Values) *Run {
	name := params.Get("run")
	run := c.getRun(name)
	if run == nil {
		if name == "" {
			http.Error(w, "no results yet", http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("unknown run %q", name), http.StatusNotFound)
		}
		return nil
	}
	return run
}

func (c *ClusterExplorer) GetRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, runListResponse{Runs: c.runs()})
}

func (c *ClusterExplorer) GetLabels(w http.ResponseWriter, r *http.Request) {
	run := c.lookupRun(w, r.URL.Query())
	if run == nil {
		return
	}
	writeJSON(w, labelsResponse{Run: run.Name, Labels: run.result.Matrix.Labels()})
}

func (c *ClusterExplorer) GetMatrix(w http.ResponseWriter, r *http.Request) {
	run := c.lookupRun(w, r.URL.Query())
	if run == nil {
		return
	}
	m := run.result.Matrix
	writeJSON(w, matrixResponse{Run: run.Name, Labels: m.Labels(), Rows: m.Rows()})
}

func (c *ClusterExplorer) GetTree(w http.ResponseWriter, r *http.Request) {
	run := c.lookupRun(w, r.URL.Query())
	if run == nil {
		return
	}
	tree := run.result.Tree
	writeJSON(w, treeResponse{Run: run.Name, Leaves: cluster.Leaves(tree), Tree: tree})
}

func (c *ClusterExplorer) GetNewick(w http.ResponseWriter, r *http.Request) {
	run := c.lookupRun(w, r.URL.Query())
	if run == nil {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, cluster.Newick(run.result.Tree))
}

func (c *ClusterExplorer) GetLinkage(w http.ResponseWriter, r *http.Request) {
	run := c.lookupRun(w, r.URL.Query())
	if run == nil {
		return
	}
	writeJSON(w, linkageResponse{
		Run:     run.Name,
		Labels:  run.result.Matrix.Labels(),
		Linkage: cluster.LinkageMatrix(run.result.Tree),
	})
}

func (c *ClusterExplorer) GetClusters(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	heightParam := params.Get("height")
	if heightParam == "" {
		http.Error(w, "missing height parameter", http.StatusBadRequest)
		return
	}
	height, err := strconv.ParseFloat(heightParam, 64)
	if err != nil || math.IsNaN(height) {
		http.Error(w, fmt.Sprintf("bad height %q", heightParam), http.StatusBadRequest)
		return
	}
	run := c.lookupRun(w, params)
	if run == nil {
		return
	}
	writeJSON(w, clustersResponse{
		Run:      run.Name,
		Height:   height,
		Clusters: cluster.Cut(run.result.Tree, height),
	})
}

func (c *ClusterExplorer) GetDistance(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	first, second := params.Get("a"), params.Get("b")
	if first == "" || second == "" {
		http.Error(w, "need parameters a and b", http.StatusBadRequest)
		return
	}
	run := c.lookupRun(w, params)
	if run == nil {
		return
	}
	m := run.result.Matrix
	d, err := m.Distance(first, second)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	coph := cluster.Cophenetic(run.result.Tree)
	writeJSON(w, distanceResponse{
		Run:         run.Name,
		First:       first,
		Second:      second,
		Distance:    d,
		MergeHeight: coph[m.Index(first)][m.Index(second)],
	})
}
