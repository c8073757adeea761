package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, VARIANT_CONCAT, s.Variant)
	assert.Equal(t, COMPRESSOR_ZLIB, s.Compressor)
	assert.Equal(t, ENGINE_INPROCESS, s.Engine)
	assert.Equal(t, LINKAGE_SINGLE, s.Linkage)
	assert.Equal(t, "%1.3f", s.TableFormat)
	assert.Equal(t, 1e-9, s.Tolerance)
	assert.NoError(t, s.Validate())
}

func TestComputeSettingsFieldsKeepsExplicitValues(t *testing.T) {
	s := SeqclusterSettings{
		Variant:    VARIANT_PRIMED,
		Compressor: COMPRESSOR_ZSTD,
		Workers:    9,
		Tolerance:  0.01,
	}.ComputeSettingsFields()

	assert.Equal(t, VARIANT_PRIMED, s.Variant)
	assert.Equal(t, COMPRESSOR_ZSTD, s.Compressor)
	assert.Equal(t, 9, s.Workers)
	assert.Equal(t, 0.01, s.Tolerance)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SeqclusterSettings)
		want   error
	}{
		{"unknown variant", func(s *SeqclusterSettings) { s.Variant = "ncd" }, datatypes.ErrUnsupportedConfiguration},
		{"unknown compressor", func(s *SeqclusterSettings) { s.Compressor = "bzip2" }, datatypes.ErrUnsupportedConfiguration},
		{"unknown engine", func(s *SeqclusterSettings) { s.Engine = "grpc" }, datatypes.ErrUnsupportedConfiguration},
		{"kafka without url", func(s *SeqclusterSettings) { s.Engine = ENGINE_KAFKA }, datatypes.ErrUnsupportedConfiguration},
		{"average linkage", func(s *SeqclusterSettings) { s.Linkage = "average" }, datatypes.ErrUnsupportedConfiguration},
		{"negative tolerance", func(s *SeqclusterSettings) { s.Tolerance = -1 }, datatypes.ErrInvalidInput},
		{"negative timeout", func(s *SeqclusterSettings) { s.MeasureTimeout = -time.Second }, datatypes.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			assert.ErrorIs(t, s.Validate(), tt.want)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqcluster.yaml")

	s := DefaultSettings()
	s.Variant = VARIANT_PRIMED
	s.Compressor = COMPRESSOR_ZSTD
	s.MeasureTimeout = 3 * time.Second
	s.Kafka.URL = "localhost:9092"

	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), loaded)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqcluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compressor: xz\nworkers: 2\n"), 0644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, COMPRESSOR_XZ, loaded.Compressor)
	assert.Equal(t, 2, loaded.Workers)
	assert.Equal(t, VARIANT_CONCAT, loaded.Variant)
}

func TestLoadInvalidYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqcluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml:::"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
