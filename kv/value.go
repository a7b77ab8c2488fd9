package kv

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	checksumSize = 8
)

// Values are stored with a leading big endian xxhash64 of the value.

func encodeValue(val []byte) []byte {
	buf := make([]byte, checksumSize, checksumSize+len(val))
	binary.BigEndian.PutUint64(buf, xxhash.Sum64(val))
	return append(buf, val...)
}

func decodeValue(buf []byte, verify bool) ([]byte, error) {
	if len(buf) < checksumSize {
		return nil, ErrCorrupt
	}
	val := buf[checksumSize:]
	if verify && binary.BigEndian.Uint64(buf) != xxhash.Sum64(val) {
		return nil, ErrCorrupt
	}
	return val, nil
}

type checksumIterator struct {
	it     Iterator
	verify bool
}

func (cit checksumIterator) Item(fn func(key, val []byte) error) error {
	return cit.it.Item(
		func(key, buf []byte) error {
			val, err := decodeValue(buf, cit.verify)
			if err != nil {
				return err
			}
			return fn(key, val)
		})
}

func (cit checksumIterator) Close() {
	cit.it.Close()
}
