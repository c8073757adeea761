package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kpaschen/seqcluster/explorer"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <fasta>",
		Short: "Recluster a FASTA file whenever it changes",
		Long: `Runs the pipeline on a FASTA file, then watches the file and reruns it
after every change. With --serve the latest run is also served over HTTP.`,
		Args: cobra.ExactArgs(1),
		RunE: makeWatchRunner(),
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	cmd.Flags().String("serve", "", "Also serve results on this address")
	return cmd
}

func makeWatchRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		address, _ := cmd.Flags().GetString("serve")
		path := args[0]

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var expl *explorer.ClusterExplorer
		if address != "" {
			expl, err = newExplorer(s, 0)
			if err != nil {
				return err
			}
			defer expl.Shutdown()
		}

		w := &fileWatcher{
			settings: s,
			path:     path,
			debounce: debounce,
			explorer: expl,
			out:      cmd,
		}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return w.run(ctx)
		})
		if expl != nil {
			g.Go(func() error {
				return serveExplorer(ctx, expl, address)
			})
		}
		return g.Wait()
	}
}

type fileWatcher struct {
	settings settings.SeqclusterSettings
	path     string
	debounce time.Duration
	explorer *explorer.ClusterExplorer
	out      *cobra.Command
}

// rerun runs the pipeline once. Failures are logged so the watch goes on
// after a bad edit.
func (w *fileWatcher) rerun(ctx context.Context) {
	result, err := runAndReport(ctx, w.settings, w.path)
	if err != nil {
		log.WithError(err).WithField("file", w.path).Error("run failed")
		return
	}
	if w.explorer != nil {
		w.explorer.AddResult(runName(w.path), result)
	}
	fmt.Fprintln(w.out.OutOrStdout(), cluster.Newick(result.Tree))
}

// run watches the directory holding the file, since editors often replace
// a file rather than write it in place.
func (w *fileWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	w.rerun(ctx)
	log.WithField("file", w.path).Info("watching for changes")

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevantEvent(event, target) {
				continue
			}
			if !pending {
				timer.Reset(w.debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")
		case <-timer.C:
			pending = false
			if _, err := os.Stat(target); err != nil {
				log.WithField("file", w.path).Warn("file is gone, waiting for it to come back")
				continue
			}
			w.rerun(ctx)
		}
	}
}

func isRelevantEvent(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
