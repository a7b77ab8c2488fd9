package kv

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgraph-io/badger"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

const (
	badgerValueLogFileSize = 64 << 20
)

type badgerEngine struct{}

type badgerStore struct {
	db *badger.DB
}

type badgerIterator struct {
	tx     *badger.Txn
	it     *badger.Iterator
	maxKey []byte
}

func init() {
	register("badger", badgerEngine{})
}

func (_ badgerEngine) owns(name string) bool {
	return name == "LOCK" || name == "KEYREGISTRY" || strings.HasPrefix(name, "MANIFEST") ||
		strings.HasSuffix(name, ".sst") || strings.HasSuffix(name, ".vlog") ||
		strings.HasSuffix(name, ".mem")
}

func (_ badgerEngine) open(path string, opts Options, logger *log.Logger) (store, error) {
	warnIgnored(logger, "badger", opts, "block_size", "block_restart_interval",
		"index_block_size", "block_cache_size", "bloom_bits_per_key", "compression")

	bo := badger.DefaultOptions(path)
	bo = bo.WithLogger(logger)
	bo = bo.WithSyncWrites(opts.SyncWrites)
	bo.MaxLevels = opts.NumLevels
	bo.MaxTableSize = opts.WriteBufferSize
	bo.NumLevelZeroTables = opts.Level0CompactionTrigger
	if bo.NumLevelZeroTablesStall <= bo.NumLevelZeroTables {
		bo.NumLevelZeroTablesStall = bo.NumLevelZeroTables * 2
	}
	// Compactors must be zero or at least two.
	bo.NumCompactors = opts.Parallelism
	if bo.NumCompactors < 2 {
		bo.NumCompactors = 2
	}
	bo.ValueLogFileSize = badgerValueLogFileSize

	db, err := badger.Open(bo)
	if err != nil {
		return nil, err
	}
	return &badgerStore{
		db: db,
	}, nil
}

func (bs *badgerStore) get(key []byte, fn func(val []byte) error) error {
	return bs.db.View(
		func(tx *badger.Txn) error {
			item, err := tx.Get(key)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return io.EOF
				}
				return err
			}
			return item.Value(fn)
		})
}

func (bs *badgerStore) iterate(minKey, maxKey []byte) (Iterator, error) {
	tx := bs.db.NewTransaction(false)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	if minKey == nil {
		it.Rewind()
	} else {
		it.Seek(minKey)
	}

	return badgerIterator{
		tx:     tx,
		it:     it,
		maxKey: maxKey,
	}, nil
}

func (bit badgerIterator) Item(fn func(key, val []byte) error) error {
	if !bit.it.Valid() {
		return io.EOF
	}

	item := bit.it.Item()
	key := item.Key()
	if pastMax(key, bit.maxKey) {
		return io.EOF
	}
	err := item.Value(
		func(val []byte) error {
			return fn(key, val)
		})
	if err != nil {
		return err
	}

	bit.it.Next()
	return nil
}

func (bit badgerIterator) Close() {
	bit.it.Close()
	bit.tx.Discard()
}

// apply ignores sync; badger syncs according to SyncWrites.
func (bs *badgerStore) apply(ops []op, sync bool) error {
	tx := bs.db.NewTransaction(true)
	defer tx.Discard()

	for _, o := range ops {
		var err error
		if o.del {
			err = tx.Delete(o.key)
		} else {
			err = tx.Set(o.key, o.val)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// flush does nothing: committed writes are already in badger's value log.
func (bs *badgerStore) flush() error {
	return nil
}

func (bs *badgerStore) stats() string {
	lsm, vlog := bs.db.Size()
	return fmt.Sprintf("lsm size: %s\nvalue log size: %s\n", humanize.IBytes(uint64(lsm)),
		humanize.IBytes(uint64(vlog)))
}

func (bs *badgerStore) close() error {
	return bs.db.Close()
}
