package kv

import (
	"bytes"
	"io"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

var (
	ErrUpdaterComplete = errors.New("kv: updater already completed")
)

// Updater collects sets and deletes and applies them atomically, in key order, when
// committed.
type Updater struct {
	db    *DB
	delta *btree.BTree
}

func (o op) Less(item btree.Item) bool {
	return bytes.Compare(o.key, (item.(op)).key) < 0
}

func (db *DB) Update() *Updater {
	return &Updater{
		db:    db,
		delta: btree.New(16),
	}
}

// Get sees the updater's own pending sets and deletes before the database.
func (u *Updater) Get(ro ReadOptions, key []byte, fn func(val []byte) error) error {
	if u.delta == nil {
		return ErrUpdaterComplete
	}

	if item := u.delta.Get(op{key: key}); item != nil {
		o := item.(op)
		if o.del {
			return io.EOF
		}
		val, err := decodeValue(o.val, ro.VerifyChecksums)
		if err != nil {
			return err
		}
		return fn(val)
	}
	return u.db.Get(ro, key, fn)
}

func (u *Updater) Set(key, val []byte) error {
	if u.delta == nil {
		return ErrUpdaterComplete
	}

	u.delta.ReplaceOrInsert(op{
		key: append(make([]byte, 0, len(key)), key...),
		val: encodeValue(val),
	})
	return nil
}

func (u *Updater) Delete(key []byte) error {
	if u.delta == nil {
		return ErrUpdaterComplete
	}

	u.delta.ReplaceOrInsert(op{
		key: append(make([]byte, 0, len(key)), key...),
		del: true,
	})
	return nil
}

// Len returns the number of pending keys.
func (u *Updater) Len() int {
	if u.delta == nil {
		return 0
	}
	return u.delta.Len()
}

func (u *Updater) Commit(sync bool) error {
	if u.delta == nil {
		return ErrUpdaterComplete
	}

	ops := make([]op, 0, u.delta.Len())
	u.delta.Ascend(
		func(item btree.Item) bool {
			ops = append(ops, item.(op))
			return true
		})
	u.delta = nil
	if len(ops) == 0 {
		return nil
	}

	st, err := u.db.store()
	if err != nil {
		return err
	}
	return st.apply(ops, sync || u.db.opts.SyncWrites)
}

func (u *Updater) Rollback() {
	u.delta = nil
}
