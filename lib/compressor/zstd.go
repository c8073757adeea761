package compressor

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Zstd measures sizes of zstd frames. Priming loads the other item as a raw
// dictionary.
type Zstd struct {
	level   zstd.EncoderLevel
	encoder *zstd.Encoder
}

func NewZstd(level int) (*Zstd, error) {
	encLevel := zstd.SpeedDefault
	if level != 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Zstd{level: encLevel, encoder: enc}, nil
}

func (z *Zstd) Name() string {
	return fmt.Sprintf("zstd-%s", z.level.String())
}

func (z *Zstd) Measure(ctx context.Context, payload []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(z.encoder.EncodeAll(payload, nil)), nil
}

func (z *Zstd) MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(z.level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderDictRaw(0, prior),
	)
	if err != nil {
		return 0, fmt.Errorf("zstd: load dictionary: %w", err)
	}
	defer enc.Close()
	return len(enc.EncodeAll(payload, nil)), nil
}
