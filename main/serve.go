package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpaschen/seqcluster/explorer"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [fasta]",
		Short: "Serve clustering results over HTTP",
		Long: `Serves the runs found in the results directory, and optionally a fresh
run over the given FASTA file, through a small JSON API. Prometheus metrics
are exported on /metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeServeRunner(),
	}

	cmd.Flags().String("address", ":9205", "The address the explorer endpoint binds to")
	cmd.Flags().Duration("scan-interval", time.Minute, "How often to rescan the results directory, 0 to scan once")
	return cmd
}

func makeServeRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("address")
		scanInterval, _ := cmd.Flags().GetDuration("scan-interval")

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		expl, err := newExplorer(s, scanInterval)
		if err != nil {
			return err
		}
		defer expl.Shutdown()

		if len(args) == 1 {
			result, err := runAndReport(ctx, s, args[0])
			if err != nil {
				return err
			}
			expl.AddResult(runName(args[0]), result)
		}
		return serveExplorer(ctx, expl, address)
	}
}

func newExplorer(s settings.SeqclusterSettings, scanInterval time.Duration) (*explorer.ClusterExplorer, error) {
	expl := explorer.NewClusterExplorer(s.ResultsDirectory, s.Tolerance)
	if err := expl.Initialize(scanInterval); err != nil {
		return nil, err
	}
	return expl, nil
}

// serveExplorer blocks until ctx is done or the server fails.
func serveExplorer(ctx context.Context, expl *explorer.ClusterExplorer, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           expl.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", address).Info("explorer listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("explorer shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
