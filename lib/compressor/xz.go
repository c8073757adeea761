package compressor

import (
	"bytes"
	"context"

	"github.com/ulikunitz/xz"
)

// Xz measures sizes of xz streams. It has no priming support.
type Xz struct {
	config xz.WriterConfig
}

func NewXz() *Xz {
	return &Xz{config: xz.WriterConfig{CheckSum: xz.CRC32}}
}

func (x *Xz) Name() string {
	return "xz"
}

func (x *Xz) Measure(ctx context.Context, payload []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	w, err := x.config.NewWriter(&buf)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(payload); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
