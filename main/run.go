package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/fasta"
	"github.com/kpaschen/seqcluster/lib/reporter"
	"github.com/kpaschen/seqcluster/lib/settings"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <fasta>",
		Short: "Measure, cluster and report a FASTA file",
		Long: `Reads the sequences in a FASTA file, measures their compressed sizes,
builds the distance matrix and the single-linkage dendrogram, and writes the
configured reports. The Newick tree is printed to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: makeRunRunner(),
	}

	cmd.Flags().Bool("quiet", false, "Do not print the Newick tree")
	cmd.Flags().String("cpuprofile", "", "Write a cpu profile to this file")
	return cmd
}

func makeRunRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("create cpu profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("start cpu profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		result, err := runAndReport(cmd.Context(), s, args[0])
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), cluster.Newick(result.Tree))
		}
		return nil
	}
}

// runPipeline loads path and runs the full pipeline on it.
func runPipeline(ctx context.Context, s settings.SeqclusterSettings, path string) (*lib.Result, error) {
	items, err := fasta.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := lib.NewPipeline(s)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.WithError(err).Warn("failed to close pipeline")
		}
	}()
	return p.Run(ctx, items)
}

// runAndReport runs the pipeline and writes every configured report.
func runAndReport(ctx context.Context, s settings.SeqclusterSettings, path string) (*lib.Result, error) {
	result, err := runPipeline(ctx, s, path)
	if err != nil {
		return nil, err
	}
	reporters, err := reporter.NewReporters(s, runName(path))
	if err != nil {
		return nil, err
	}
	if err := reporter.ReportAll(reporters, result); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"reports":   s.Reports,
		"directory": s.ResultsDirectory,
	}).Info("wrote reports")
	return result, nil
}
