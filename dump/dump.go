// Package dump writes the keys and values of a database as a stream of protobuf wire
// records and reads them back.
//
// Each record is field 1, length delimited, holding an entry: field 1 is the key and
// field 2 is the value. Unknown fields are skipped when reading.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leftmike/kvbind/kv"
)

const (
	entryField protowire.Number = 1
	keyField   protowire.Number = 1
	valField   protowire.Number = 2
)

func appendEntry(buf, key, val []byte) []byte {
	var ent []byte
	ent = protowire.AppendTag(ent, keyField, protowire.BytesType)
	ent = protowire.AppendBytes(ent, key)
	ent = protowire.AppendTag(ent, valField, protowire.BytesType)
	ent = protowire.AppendBytes(ent, val)

	buf = protowire.AppendTag(buf, entryField, protowire.BytesType)
	return protowire.AppendBytes(buf, ent)
}

// Write writes every key and value in db to w, in key order, and returns the number
// of entries written.
func Write(w io.Writer, db *kv.DB) (int, error) {
	it, err := db.Iterate(kv.DefaultReadOptions(), nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	bw := bufio.NewWriter(w)
	var buf []byte
	var cnt int
	for {
		err = it.Item(
			func(key, val []byte) error {
				buf = appendEntry(buf[:0], key, val)
				_, err := bw.Write(buf)
				return err
			})
		if err == io.EOF {
			break
		} else if err != nil {
			return cnt, err
		}
		cnt += 1
	}

	return cnt, bw.Flush()
}

func parseEntry(b []byte) (key, val []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, nil, protowire.ParseError(n)
		}
		b = b[n:]

		if (num == keyField || num == valField) && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, nil, protowire.ParseError(n)
			}
			if num == keyField {
				key = v
			} else {
				val = v
			}
			b = b[n:]
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if key == nil {
		return nil, nil, fmt.Errorf("dump: entry missing key")
	}
	if val == nil {
		val = []byte{}
	}
	return key, val, nil
}

// Read reads entries written by Write from r and sets them in db as a single update. It
// returns the number of entries read; nothing is set if any entry is bad.
func Read(r io.Reader, db *kv.DB) (int, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return 0, err
	}

	u := db.Update()
	var cnt int
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			u.Rollback()
			return 0, fmt.Errorf("dump: record %d: %s", cnt, protowire.ParseError(n))
		}
		b = b[n:]

		if num != entryField || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				u.Rollback()
				return 0, fmt.Errorf("dump: record %d: %s", cnt, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		ent, n := protowire.ConsumeBytes(b)
		if n < 0 {
			u.Rollback()
			return 0, fmt.Errorf("dump: record %d: %s", cnt, protowire.ParseError(n))
		}
		b = b[n:]

		key, val, err := parseEntry(ent)
		if err != nil {
			u.Rollback()
			return 0, fmt.Errorf("dump: record %d: %s", cnt, err)
		}
		err = u.Set(key, val)
		if err != nil {
			u.Rollback()
			return 0, err
		}
		cnt += 1
	}

	err = u.Commit(true)
	if err != nil {
		return 0, err
	}
	return cnt, nil
}
