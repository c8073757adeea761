package compressor

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zlib"
	log "github.com/sirupsen/logrus"
)

// ZLIB_WINDOW is the part of a preset dictionary deflate can reference.
const ZLIB_WINDOW = 32 << 10

// Zlib measures sizes of zlib streams. Priming uses the payload of the
// other item as preset dictionary. Deflate can only reference the last
// 32KiB of a dictionary.
type Zlib struct {
	level     int
	warnLarge sync.Once
}

func NewZlib(level int) (*Zlib, error) {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		return nil, fmt.Errorf("zlib: invalid compression level %d", level)
	}
	return &Zlib{level: level}, nil
}

func (z *Zlib) Name() string {
	return fmt.Sprintf("zlib-%d", z.level)
}

func (z *Zlib) Measure(ctx context.Context, payload []byte) (int, error) {
	return z.measure(ctx, payload, nil)
}

func (z *Zlib) MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error) {
	if len(prior) > ZLIB_WINDOW {
		z.warnLarge.Do(func() {
			log.WithFields(log.Fields{
				"prior":  len(prior),
				"window": ZLIB_WINDOW,
			}).Warn("zlib only primes with the last 32KiB of the prior context")
		})
	}
	return z.measure(ctx, payload, prior)
}

func (z *Zlib) measure(ctx context.Context, payload []byte, dict []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	var w *zlib.Writer
	var err error
	if len(dict) > 0 {
		w, err = zlib.NewWriterLevelDict(&buf, z.level, dict)
	} else {
		w, err = zlib.NewWriterLevel(&buf, z.level)
	}
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
