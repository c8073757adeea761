package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/kpaschen/seqcluster/lib/settings"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "seqcluster",
		Short:         "Compression distance clustering for sequences",
		Long:          `Estimates pairwise distances between sequences from compressed sizes and builds a single-linkage dendrogram.`,
		Version:       version.Info(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewRunCmd(),
		NewMatrixCmd(),
		NewClusterCmd(),
		NewServeCmd(),
		NewWatchCmd(),
		NewVersionCmd(),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "YAML settings file; flags override its values")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("variant", "", "Distance variant (concat|primed)")
	flags.String("compressor", "", "Compressor backing the sizes (zlib|zstd|xz)")
	flags.Int("level", 0, "Compression level, 0 for the compressor's default")
	flags.String("engine", "", "Measurement engine (inprocess|parallel|kafka)")
	flags.Int("workers", 0, "Worker count for the parallel engine")
	flags.Duration("timeout", 0, "Upper bound for one compressor call, 0 for none")
	flags.String("cache-dir", "", "Directory for the compressed size cache")
	flags.String("kafka-url", "", "Kafka broker for the kafka engine")
	flags.Float64("tolerance", 0, "Tolerance for matrix symmetry and diagonal checks")
	flags.String("results-dir", "", "Directory for reports")
	flags.StringSlice("reports", nil, "Reports to write (table,csv,parquet,newick,json,clusters)")
	flags.Float64("cut-height", 0, "Height for the clusters report")
}

// loadSettings reads the settings file, applies the flags that were set
// and configures logging.
func loadSettings(cmd *cobra.Command) (settings.SeqclusterSettings, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	var s settings.SeqclusterSettings
	if path == "" {
		s = settings.DefaultSettings()
	} else {
		var err error
		s, err = settings.Load(path)
		if err != nil {
			return s, datatypes.NewStageError(datatypes.STAGE_SETTINGS, path, err)
		}
	}

	if flags.Changed("log-level") {
		s.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("variant") {
		v, _ := flags.GetString("variant")
		s.Variant = settings.Variant(v)
	}
	if flags.Changed("compressor") {
		s.Compressor, _ = flags.GetString("compressor")
	}
	if flags.Changed("level") {
		s.Level, _ = flags.GetInt("level")
	}
	if flags.Changed("engine") {
		s.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("workers") {
		s.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("timeout") {
		s.MeasureTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("cache-dir") {
		s.CacheDirectory, _ = flags.GetString("cache-dir")
	}
	if flags.Changed("kafka-url") {
		s.Kafka.URL, _ = flags.GetString("kafka-url")
	}
	if flags.Changed("tolerance") {
		s.Tolerance, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("results-dir") {
		s.ResultsDirectory, _ = flags.GetString("results-dir")
	}
	if flags.Changed("reports") {
		s.Reports, _ = flags.GetStringSlice("reports")
	}
	if flags.Changed("cut-height") {
		s.CutHeight, _ = flags.GetFloat64("cut-height")
	}
	s = s.ComputeSettingsFields()

	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return s, datatypes.NewStageError(datatypes.STAGE_SETTINGS, "log_level",
			fmt.Errorf("%v: %w", err, datatypes.ErrInvalidInput))
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})

	if err := s.Validate(); err != nil {
		return s, datatypes.NewStageError(datatypes.STAGE_SETTINGS, "", err)
	}
	return s, nil
}

// runName derives report names from the input file: seqs.fasta.gz gives seqs.
func runName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".fasta", ".fa", ".fna", ".txt", ".pq"} {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return "seqcluster"
	}
	return name
}
