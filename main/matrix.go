package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kpaschen/seqcluster/lib"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/distance"
	"github.com/kpaschen/seqcluster/lib/fasta"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewMatrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix <fasta>",
		Short: "Print the distance matrix for a FASTA file",
		Long:  `Measures the sequences in a FASTA file and writes their distance matrix as a whitespace separated table.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeMatrixRunner(),
	}

	cmd.Flags().StringP("output", "o", "", "Write the table to this file instead of stdout")
	cmd.Flags().Bool("no-header", false, "Omit the label header line")
	return cmd
}

func makeMatrixRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		noHeader, _ := cmd.Flags().GetBool("no-header")

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		items, err := fasta.Load(args[0])
		if err != nil {
			return err
		}
		p, err := lib.NewPipeline(s)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Close(); err != nil {
				log.WithError(err).Warn("failed to close pipeline")
			}
		}()

		_, matrix, err := p.Measure(cmd.Context(), items)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return datatypes.NewStageError(datatypes.STAGE_REPORT, output, err)
			}
			defer f.Close()
			w = f
		}
		if err := distance.WriteTable(w, matrix, s.TableFormat, !noHeader); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
		return nil
	}
}
