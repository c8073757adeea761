package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/cluster"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/explorer"
	"github.com/kpaschen/seqcluster/lib/reporter"
	"github.com/spf13/cobra"
)

const (
	FORMAT_NEWICK   = "newick"
	FORMAT_JSON     = "json"
	FORMAT_LINKAGE  = "linkage"
	FORMAT_CLUSTERS = "clusters"
)

func NewClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster <matrix>",
		Short: "Cluster an existing distance matrix",
		Long: `Builds the single-linkage dendrogram for a distance table written by
"seqcluster matrix" or a parquet distance report.`,
		Args: cobra.ExactArgs(1),
		RunE: makeClusterRunner(),
	}

	cmd.Flags().String("format", FORMAT_NEWICK, "Output format (newick|json|linkage|clusters)")
	cmd.Flags().Bool("report", false, "Also write the configured reports")
	return cmd
}

func makeClusterRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		report, _ := cmd.Flags().GetBool("report")

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		matrix, err := loadMatrix(args[0], s.Tolerance)
		if err != nil {
			return err
		}
		tree, err := cluster.Cluster(matrix,
			cluster.WithTolerance(s.Tolerance),
			cluster.WithLinkage(s.Linkage))
		if err != nil {
			return err
		}
		result := &lib.Result{
			Matrix:   matrix,
			Tree:     tree,
			Variant:  s.Variant,
			Finished: time.Now(),
		}

		if report {
			reporters, err := reporter.NewReporters(s, runName(args[0]))
			if err != nil {
				return err
			}
			if err := reporter.ReportAll(reporters, result); err != nil {
				return err
			}
		}
		return printTree(cmd, format, result, s.CutHeight)
	}
}

// loadMatrix reads a distance table, or the pair rows of a parquet report.
func loadMatrix(path string, tol float64) (*distance.Matrix, error) {
	if strings.HasSuffix(path, ".pq") || strings.HasSuffix(path, ".parquet") {
		pe := explorer.NewParquetExplorer(filepath.Dir(path))
		if err := pe.Initialize(filepath.Base(path)); err != nil {
			return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
		}
		defer pe.Close()
		m, err := pe.ReadMatrix(tol)
		if err != nil {
			return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
		}
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
	}
	defer f.Close()
	m, err := distance.LoadTable(f, tol)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
	}
	return m, nil
}

func printTree(cmd *cobra.Command, format string, result *lib.Result, height float64) error {
	out := cmd.OutOrStdout()
	switch format {
	case FORMAT_NEWICK:
		fmt.Fprintln(out, cluster.Newick(result.Tree))
	case FORMAT_JSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reporter.NewTreeDocument(result))
	case FORMAT_LINKAGE:
		for _, row := range cluster.LinkageMatrix(result.Tree) {
			fmt.Fprintf(out, "%d %d %g %d\n", row.A, row.B, row.Height, row.Size)
		}
	case FORMAT_CLUSTERS:
		for i, members := range cluster.Cut(result.Tree, height) {
			fmt.Fprintf(out, "%d %s\n", i, strings.Join(members, ","))
		}
	default:
		return fmt.Errorf("unknown format %q: %w", format, datatypes.ErrUnsupportedConfiguration)
	}
	return nil
}
