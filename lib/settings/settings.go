// Package settings contains all the parameters for the seqcluster pipeline.
package settings

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"gopkg.in/yaml.v3"
)

// Variant selects the distance formula.
type Variant string

const (
	// VARIANT_CONCAT only needs plain single-payload compression.
	VARIANT_CONCAT Variant = "concat"
	// VARIANT_PRIMED needs a compressor that can compress one payload with
	// another as prior context. zlib sees at most the last 32KiB of the
	// prior, so for longer items it measures a different quantity.
	VARIANT_PRIMED Variant = "primed"
)

const (
	COMPRESSOR_ZLIB = "zlib"
	COMPRESSOR_ZSTD = "zstd"
	COMPRESSOR_XZ   = "xz"
)

const (
	ENGINE_INPROCESS = "inprocess"
	ENGINE_PARALLEL  = "parallel"
	ENGINE_KAFKA     = "kafka"
)

const (
	LINKAGE_SINGLE = "single"
)

type KafkaSettings struct {
	URL          string `yaml:"url"`
	PairTopic    string `yaml:"pair_topic"`
	ResultsTopic string `yaml:"results_topic"`
	GroupID      string `yaml:"group_id"`
	// Number of pair jobs per kafka message.
	BatchSize int `yaml:"batch_size"`
}

type SeqclusterSettings struct {
	Variant Variant `yaml:"variant"`

	// Compressor backing the size measurements, and its level.
	// A level of 0 means the compressor's default.
	Compressor string `yaml:"compressor"`
	Level      int    `yaml:"level"`

	// Measurement engine and worker count for the parallel engine.
	Engine  string `yaml:"engine"`
	Workers int    `yaml:"workers"`

	// Upper bound for a single compressor call. 0 means no bound.
	MeasureTimeout time.Duration `yaml:"measure_timeout"`

	// Directory for the badger size cache. Empty disables the cache.
	CacheDirectory string `yaml:"cache_directory"`

	Linkage string `yaml:"linkage"`
	// Tolerance for the symmetry and zero-diagonal checks on a matrix.
	Tolerance float64 `yaml:"tolerance"`

	// Where reports go, and which ones to write.
	ResultsDirectory string   `yaml:"results_directory"`
	Reports          []string `yaml:"reports"`
	// Height at which the clusters report cuts the dendrogram.
	CutHeight float64 `yaml:"cut_height"`
	// printf verb used for the distance table.
	TableFormat string `yaml:"table_format"`
	// Number of rows per row group in Parquet.
	MaxRowsPerRowGroup int64 `yaml:"max_rows_per_row_group"`

	LogLevel string `yaml:"log_level"`

	Kafka KafkaSettings `yaml:"kafka"`
}

func DefaultSettings() SeqclusterSettings {
	return SeqclusterSettings{}.ComputeSettingsFields()
}

func (s SeqclusterSettings) ComputeSettingsFields() SeqclusterSettings {
	if s.Variant == "" {
		s.Variant = VARIANT_CONCAT
	}
	if s.Compressor == "" {
		s.Compressor = COMPRESSOR_ZLIB
	}
	if s.Engine == "" {
		s.Engine = ENGINE_INPROCESS
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.Linkage == "" {
		s.Linkage = LINKAGE_SINGLE
	}
	if s.Tolerance == 0 {
		s.Tolerance = 1e-9
	}
	if s.ResultsDirectory == "" {
		s.ResultsDirectory = "."
	}
	if len(s.Reports) == 0 {
		s.Reports = []string{"table", "newick"}
	}
	if s.TableFormat == "" {
		s.TableFormat = "%1.3f"
	}
	if s.MaxRowsPerRowGroup == 0 {
		s.MaxRowsPerRowGroup = 100000
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Kafka.PairTopic == "" {
		s.Kafka.PairTopic = "seqcluster_pairs"
	}
	if s.Kafka.ResultsTopic == "" {
		s.Kafka.ResultsTopic = "seqcluster_sizes"
	}
	if s.Kafka.GroupID == "" {
		s.Kafka.GroupID = "seqcluster"
	}
	if s.Kafka.BatchSize <= 0 {
		s.Kafka.BatchSize = 100
	}
	return s
}

// Validate rejects settings no component can honor.
func (s SeqclusterSettings) Validate() error {
	switch s.Variant {
	case VARIANT_CONCAT, VARIANT_PRIMED:
	default:
		return fmt.Errorf("unknown variant %q: %w", s.Variant, datatypes.ErrUnsupportedConfiguration)
	}
	switch s.Compressor {
	case COMPRESSOR_ZLIB, COMPRESSOR_ZSTD, COMPRESSOR_XZ:
	default:
		return fmt.Errorf("unknown compressor %q: %w", s.Compressor, datatypes.ErrUnsupportedConfiguration)
	}
	switch s.Engine {
	case ENGINE_INPROCESS, ENGINE_PARALLEL:
	case ENGINE_KAFKA:
		if s.Kafka.URL == "" {
			return fmt.Errorf("kafka engine needs a broker url: %w", datatypes.ErrUnsupportedConfiguration)
		}
	default:
		return fmt.Errorf("unknown engine %q: %w", s.Engine, datatypes.ErrUnsupportedConfiguration)
	}
	if s.Linkage != LINKAGE_SINGLE {
		return fmt.Errorf("unsupported linkage %q: %w", s.Linkage, datatypes.ErrUnsupportedConfiguration)
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("negative tolerance %g: %w", s.Tolerance, datatypes.ErrInvalidInput)
	}
	if math.IsNaN(s.CutHeight) || math.IsInf(s.CutHeight, 0) {
		return fmt.Errorf("cut height %g is not finite: %w", s.CutHeight, datatypes.ErrInvalidInput)
	}
	if s.MeasureTimeout < 0 {
		return fmt.Errorf("negative measure timeout %v: %w", s.MeasureTimeout, datatypes.ErrInvalidInput)
	}
	return nil
}

// Load reads settings from a yaml file. A missing file yields the defaults.
func Load(path string) (SeqclusterSettings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return SeqclusterSettings{}, fmt.Errorf("read settings: %w", err)
	}

	var s SeqclusterSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return SeqclusterSettings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s.ComputeSettingsFields(), nil
}

func Save(path string, s SeqclusterSettings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
