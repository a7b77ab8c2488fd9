package kv

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

const (
	bboltFile = "data.bbolt"
)

var (
	kvBucket = []byte{'k', 'v'}
)

type bboltEngine struct{}

type bboltStore struct {
	db *bbolt.DB
}

type bboltIterator struct {
	tx     *bbolt.Tx
	cr     *bbolt.Cursor
	key    []byte
	val    []byte
	maxKey []byte
}

func init() {
	register("bbolt", bboltEngine{})
}

func (_ bboltEngine) owns(name string) bool {
	return name == bboltFile
}

func (_ bboltEngine) open(path string, opts Options, logger *log.Logger) (store, error) {
	warnIgnored(logger, "bbolt", opts, "num_levels", "max_background_jobs",
		"level0_file_num_compaction_trigger", "write_buffer_size", "block_restart_interval",
		"index_block_size", "block_cache_size", "bloom_bits_per_key", "compression")

	db, err := bbolt.Open(filepath.Join(path, bboltFile), 0644,
		&bbolt.Options{
			Timeout:        time.Second,
			NoFreelistSync: !opts.SyncWrites,
			PageSize:       opts.BlockSize,
		})
	if err != nil {
		return nil, err
	}
	db.NoSync = !opts.SyncWrites

	err = db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(kvBucket)
			return err
		})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &bboltStore{
		db: db,
	}, nil
}

func (bs *bboltStore) get(key []byte, fn func(val []byte) error) error {
	return bs.db.View(
		func(tx *bbolt.Tx) error {
			val := tx.Bucket(kvBucket).Get(key)
			if val == nil {
				return io.EOF
			}
			return fn(val)
		})
}

func (bs *bboltStore) iterate(minKey, maxKey []byte) (Iterator, error) {
	tx, err := bs.db.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, "bbolt: begin failed")
	}
	cr := tx.Bucket(kvBucket).Cursor()

	var key, val []byte
	if minKey == nil {
		key, val = cr.First()
	} else {
		key, val = cr.Seek(minKey)
	}

	return &bboltIterator{
		tx:     tx,
		cr:     cr,
		key:    key,
		val:    val,
		maxKey: maxKey,
	}, nil
}

func (bit *bboltIterator) Item(fn func(key, val []byte) error) error {
	if bit.key == nil || pastMax(bit.key, bit.maxKey) {
		return io.EOF
	}

	err := fn(bit.key, bit.val)
	if err != nil {
		return err
	}

	bit.key, bit.val = bit.cr.Next()
	return nil
}

func (bit *bboltIterator) Close() {
	bit.tx.Rollback()
}

func (bs *bboltStore) apply(ops []op, sync bool) error {
	err := bs.db.Update(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(kvBucket)
			for _, o := range ops {
				var err error
				if o.del {
					err = bkt.Delete(o.key)
				} else {
					err = bkt.Put(o.key, o.val)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}

	if sync && bs.db.NoSync {
		return bs.db.Sync()
	}
	return nil
}

func (bs *bboltStore) flush() error {
	return bs.db.Sync()
}

func (bs *bboltStore) stats() string {
	var size int64
	bs.db.View(
		func(tx *bbolt.Tx) error {
			size = tx.Size()
			return nil
		})

	st := bs.db.Stats()
	return fmt.Sprintf("file size: %s\nfree pages: %d\npending pages: %d\ntransactions: %d\n",
		humanize.IBytes(uint64(size)), st.FreePageN, st.PendingPageN, st.TxN)
}

func (bs *bboltStore) close() error {
	return bs.db.Close()
}
