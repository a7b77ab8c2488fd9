package kv

import (
	"io"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	log "github.com/sirupsen/logrus"
)

type pebbleEngine struct{}

type pebbleStore struct {
	db *pebble.DB
}

// pebbleIter is the part of *pebble.Iterator that pebbleIterator uses.
type pebbleIter interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() bool
	Error() error
	Close() error
}

type pebbleIterator struct {
	it     pebbleIter
	maxKey []byte
}

func init() {
	register("pebble", pebbleEngine{})
}

func (_ pebbleEngine) owns(name string) bool {
	switch {
	case name == "CURRENT" || name == "LOCK" || name == "archive":
		return true
	case strings.HasPrefix(name, "MANIFEST-") || strings.HasPrefix(name, "OPTIONS-") ||
		strings.HasPrefix(name, "marker.") || strings.HasPrefix(name, "temporary."):
		return true
	case strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".sst") ||
		strings.HasSuffix(name, ".dbtmp"):
		return true
	}
	return false
}

func (_ pebbleEngine) open(path string, opts Options, logger *log.Logger) (store, error) {
	cache := pebble.NewCache(opts.BlockCacheSize)
	defer cache.Unref()

	po := &pebble.Options{
		Cache:                    cache,
		L0CompactionThreshold:    opts.Level0CompactionTrigger,
		MaxConcurrentCompactions: opts.Parallelism,
		MemTableSize:             int(opts.WriteBufferSize),
		Levels:                   make([]pebble.LevelOptions, opts.NumLevels),
		Logger:                   logger,
	}
	if stop := opts.Level0CompactionTrigger * 3; stop > 12 {
		po.L0StopWritesThreshold = stop
	}

	compression := pebble.SnappyCompression
	if opts.Compression == "none" {
		compression = pebble.NoCompression
	}
	for ldx := range po.Levels {
		lo := &po.Levels[ldx]
		lo.BlockSize = opts.BlockSize
		lo.BlockRestartInterval = opts.BlockRestartInterval
		lo.IndexBlockSize = opts.IndexBlockSize
		lo.Compression = compression
		if opts.BloomBitsPerKey > 0 {
			lo.FilterPolicy = bloom.FilterPolicy(opts.BloomBitsPerKey)
		}
	}

	db, err := pebble.Open(path, po)
	if err != nil {
		return nil, err
	}
	return &pebbleStore{
		db: db,
	}, nil
}

func (ps *pebbleStore) get(key []byte, fn func(val []byte) error) error {
	val, closer, err := ps.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return io.EOF
		}
		return err
	}
	defer closer.Close()

	return fn(val)
}

func (ps *pebbleStore) iterate(minKey, maxKey []byte) (Iterator, error) {
	it := ps.db.NewIter(nil)
	if minKey == nil {
		it.First()
	} else {
		it.SeekGE(minKey)
	}

	return pebbleIterator{
		it:     it,
		maxKey: maxKey,
	}, nil
}

func (pit pebbleIterator) Item(fn func(key, val []byte) error) error {
	if !pit.it.Valid() {
		if err := pit.it.Error(); err != nil {
			return err
		}
		return io.EOF
	}
	if pastMax(pit.it.Key(), pit.maxKey) {
		return io.EOF
	}

	err := fn(pit.it.Key(), pit.it.Value())
	if err != nil {
		return err
	}

	pit.it.Next()
	return nil
}

func (pit pebbleIterator) Close() {
	pit.it.Close()
}

func (ps *pebbleStore) apply(ops []op, sync bool) error {
	b := ps.db.NewBatch()
	defer b.Close()

	for _, o := range ops {
		var err error
		if o.del {
			err = b.Delete(o.key, nil)
		} else {
			err = b.Set(o.key, o.val, nil)
		}
		if err != nil {
			return err
		}
	}

	wo := pebble.NoSync
	if sync {
		wo = pebble.Sync
	}
	return b.Commit(wo)
}

func (ps *pebbleStore) flush() error {
	return ps.db.Flush()
}

func (ps *pebbleStore) stats() string {
	return ps.db.Metrics().String()
}

func (ps *pebbleStore) close() error {
	return ps.db.Close()
}
