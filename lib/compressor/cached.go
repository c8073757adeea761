package compressor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqcluster_size_cache_hits_total",
			Help: "Number of compressed sizes served from the size cache.",
		},
		[]string{"oracle"},
	)
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqcluster_size_cache_misses_total",
			Help: "Number of compressed sizes that had to be measured.",
		},
		[]string{"oracle"},
	)
)

func init() {
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

const (
	modePlain  byte = 'p'
	modePrimed byte = 'c'
)

// Cached keeps measured sizes in a badger store so repeated runs over the
// same sequences skip the compressor. Sizes are deterministic per oracle,
// so entries never expire.
type Cached struct {
	inner Oracle
	db    *badger.DB
}

// NewCached opens a size cache in dir. An empty dir keeps the cache in memory.
func NewCached(inner Oracle, dir string) (*Cached, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open size cache: %w", err)
	}
	log.WithFields(log.Fields{
		"oracle": inner.Name(),
		"dir":    dir,
	}).Debug("opened size cache")
	return &Cached{inner: inner, db: db}, nil
}

func (c *Cached) Name() string {
	return c.inner.Name()
}

func (c *Cached) Unwrap() Oracle {
	return c.inner
}

func (c *Cached) Close() error {
	return c.db.Close()
}

func (c *Cached) Measure(ctx context.Context, payload []byte) (int, error) {
	key := c.key(modePlain, payload, nil)
	return c.lookupOrMeasure(key, func() (int, error) {
		return c.inner.Measure(ctx, payload)
	})
}

func (c *Cached) MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error) {
	if !CanPrime(c.inner) {
		return measurePrimed(ctx, c.inner, payload, prior)
	}
	key := c.key(modePrimed, payload, prior)
	return c.lookupOrMeasure(key, func() (int, error) {
		return measurePrimed(ctx, c.inner, payload, prior)
	})
}

func (c *Cached) lookupOrMeasure(key []byte, measure func() (int, error)) (int, error) {
	size, found, err := c.get(key)
	if err != nil {
		return 0, err
	}
	if found {
		cacheHits.WithLabelValues(c.inner.Name()).Inc()
		return size, nil
	}
	cacheMisses.WithLabelValues(c.inner.Name()).Inc()
	size, err = measure()
	if err != nil {
		return 0, err
	}
	if err := c.put(key, size); err != nil {
		return 0, err
	}
	return size, nil
}

// key hashes the oracle name, the mode and both payloads. Lengths are part
// of the hash so that moving bytes between payload and prior changes the key.
func (c *Cached) key(mode byte, payload []byte, prior []byte) []byte {
	var lengths [16]byte
	binary.BigEndian.PutUint64(lengths[:8], uint64(len(payload)))
	binary.BigEndian.PutUint64(lengths[8:], uint64(len(prior)))

	d := xxhash.New()
	d.WriteString(c.inner.Name())
	d.Write([]byte{0, mode})
	d.Write(lengths[:])
	d.Write(payload)
	d.Write(prior)

	key := make([]byte, 0, 1+8+16)
	key = append(key, mode)
	key = binary.BigEndian.AppendUint64(key, d.Sum64())
	return append(key, lengths[:]...)
}

func (c *Cached) get(key []byte) (int, bool, error) {
	var size int
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, n := binary.Uvarint(val)
			if n <= 0 {
				return fmt.Errorf("corrupt size cache entry")
			}
			size = int(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read size cache: %w", err)
	}
	return size, true, nil
}

func (c *Cached) put(key []byte, size int) error {
	val := binary.AppendUvarint(nil, uint64(size))
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("write size cache: %w", err)
	}
	return nil
}
