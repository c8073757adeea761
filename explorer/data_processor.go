// Package explorer serves clustering results over HTTP.
package explorer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/distance"
	log "github.com/sirupsen/logrus"
)

const (
	RUN_CACHE_SIZE = 10
	tableSuffix    = "_distances.txt"
)

type ClusterExplorer struct {
	FilenameBase string
	Tolerance    float64

	mu       sync.RWMutex
	runCache []*Run
	ticker   *time.Ticker
	done     chan struct{}
}

func NewClusterExplorer(filenameBase string, tolerance float64) *ClusterExplorer {
	return &ClusterExplorer{
		FilenameBase: filenameBase,
		Tolerance:    tolerance,
		runCache:     make([]*Run, 0, RUN_CACHE_SIZE),
	}
}

// Initialize loads the tables in the results directory and rescans it
// every scanInterval. A zero interval scans once.
func (c *ClusterExplorer) Initialize(scanInterval time.Duration) error {
	if c.FilenameBase == "" {
		return nil
	}
	if err := c.scanResultFiles(); err != nil {
		return err
	}
	if scanInterval <= 0 {
		return nil
	}
	c.ticker = time.NewTicker(scanInterval)
	c.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-c.ticker.C:
				if err := c.scanResultFiles(); err != nil {
					log.WithError(err).Warn("failed to scan results directory")
				}
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

func (c *ClusterExplorer) Shutdown() {
	if c.ticker != nil {
		c.ticker.Stop()
		close(c.done)
		c.ticker = nil
	}
}

// AddResult makes result the latest run. An existing run with the same
// name is replaced. Its distance table is not reloaded by later scans
// unless the file changes again.
func (c *ClusterExplorer) AddResult(name string, result *lib.Result) {
	run := &Run{
		Name:     name,
		Items:    result.Matrix.Len(),
		Oracle:   result.Oracle,
		Variant:  string(result.Variant),
		Finished: result.Finished,
		Filename: name + tableSuffix,
		result:   result,
		loaded:   time.Now(),
	}
	c.addRunCacheEntry(run)
}

func (c *ClusterExplorer) addRunCacheEntry(run *Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.runCache {
		if r.Name == run.Name {
			c.runCache = append(c.runCache[:i], c.runCache[i+1:]...)
			break
		}
	}
	if len(c.runCache) >= RUN_CACHE_SIZE {
		evicted := c.runCache[0]
		c.runCache = c.runCache[1:]
		log.WithField("run", evicted.Name).Debug("evicted run from cache")
	}
	c.runCache = append(c.runCache, run)
}

// getRun returns the named run, or the latest one for an empty name.
func (c *ClusterExplorer) getRun(name string) *Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.runCache) == 0 {
		return nil
	}
	if name == "" {
		return c.runCache[len(c.runCache)-1]
	}
	for _, r := range c.runCache {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (c *ClusterExplorer) runs() []Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make([]Run, len(c.runCache))
	for i, r := range c.runCache {
		ret[i] = *r
	}
	return ret
}

func (c *ClusterExplorer) hasFile(filename string, modTime time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.runCache {
		if r.Filename == filename && !r.loaded.Before(modTime) {
			return true
		}
	}
	return false
}

// scanResultFiles loads every distance table in the results directory,
// oldest first, and clusters it. Tables already loaded are skipped.
func (c *ClusterExplorer) scanResultFiles() error {
	entries, err := os.ReadDir(c.FilenameBase)
	if err != nil {
		return err
	}
	type tableFile struct {
		name    string
		modTime time.Time
	}
	var tables []tableFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tableSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		tables = append(tables, tableFile{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].modTime.Before(tables[j].modTime)
	})
	for _, t := range tables {
		if c.hasFile(t.name, t.modTime) {
			continue
		}
		run, err := c.readResultFile(t.name, t.modTime)
		if err != nil {
			log.WithError(err).WithField("file", t.name).Warn("skipping result file")
			continue
		}
		c.addRunCacheEntry(run)
	}
	return nil
}

func (c *ClusterExplorer) readResultFile(filename string, modTime time.Time) (*Run, error) {
	file, err := os.Open(filepath.Join(c.FilenameBase, filename))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	m, err := distance.LoadTable(file, c.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	tree, err := cluster.Cluster(m, cluster.WithTolerance(c.Tolerance))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &Run{
		Name:     strings.TrimSuffix(filename, tableSuffix),
		Items:    m.Len(),
		Finished: modTime,
		Filename: filename,
		result:   &lib.Result{Matrix: m, Tree: tree, Finished: modTime},
		loaded:   modTime,
	}, nil
}
