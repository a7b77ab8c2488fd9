package dump_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/google/go-cmp/cmp"

	"github.com/leftmike/kvbind/dump"
	"github.com/leftmike/kvbind/kv"
	"github.com/leftmike/kvbind/testutil"
)

type keyVal struct {
	Key string
	Val string
}

func openDB(t *testing.T, engine, prefix string) *kv.DB {
	t.Helper()

	tp := testutil.NewTempDBPath(t, prefix)
	opts := kv.DefaultOptions()
	opts.Engine = engine
	opts.CreateIfMissing = true
	opts.InfoLog = testutil.Logger(t)
	db, err := kv.Open(opts, tp.Path())
	if err != nil {
		t.Fatalf("Open(%s) failed with %s", tp, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func allKeyVals(t *testing.T, db *kv.DB) []keyVal {
	t.Helper()

	it, err := db.Iterate(kv.DefaultReadOptions(), nil, nil)
	if err != nil {
		t.Fatalf("Iterate() failed with %s", err)
	}
	defer it.Close()

	var kvs []keyVal
	for {
		err = it.Item(
			func(key, val []byte) error {
				kvs = append(kvs, keyVal{string(key), string(val)})
				return nil
			})
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Item() failed with %s", err)
		}
	}
	return kvs
}

func TestDump(t *testing.T) {
	for _, engine := range kv.Engines() {
		src := openDB(t, engine, "test_dump_src")

		var want []keyVal
		for i := 0; i < 100; i++ {
			e := keyVal{fmt.Sprintf("key-%03d", i), fmt.Sprintf("val %d", i*i)}
			if i%10 == 0 {
				e.Val = ""
			}
			want = append(want, e)
			err := src.Set([]byte(e.Key), []byte(e.Val))
			if err != nil {
				t.Fatalf("Set(%s) failed with %s", e.Key, err)
			}
		}

		var buf bytes.Buffer
		cnt, err := dump.Write(&buf, src)
		if err != nil {
			t.Fatalf("%s: Write() failed with %s", engine, err)
		} else if cnt != len(want) {
			t.Errorf("%s: Write() got %d want %d", engine, cnt, len(want))
		}

		dst := openDB(t, "pebble", "test_dump_dst")
		cnt, err = dump.Read(&buf, dst)
		if err != nil {
			t.Fatalf("%s: Read() failed with %s", engine, err)
		} else if cnt != len(want) {
			t.Errorf("%s: Read() got %d want %d", engine, cnt, len(want))
		}

		if diff := cmp.Diff(want, allKeyVals(t, dst)); diff != "" {
			t.Errorf("%s: Read() mismatch (-want +got):\n%s", engine, diff)
		}
	}
}

func TestDumpFormat(t *testing.T) {
	db := openDB(t, "pebble", "test_dump_format")
	err := db.Set([]byte("abc"), bytes.Repeat([]byte{'x'}, 200))
	if err != nil {
		t.Fatalf("Set() failed with %s", err)
	}

	var buf bytes.Buffer
	_, err = dump.Write(&buf, db)
	if err != nil {
		t.Fatalf("Write() failed with %s", err)
	}

	// key: tag, length, bytes; value: tag, two byte length, bytes
	entLen := 1 + 1 + 3 + 1 + 2 + 200
	var want []byte
	want = append(want, 0x0A)
	want = append(want, proto.EncodeVarint(uint64(entLen))...)
	want = append(want, 0x0A)
	want = append(want, proto.EncodeVarint(3)...)
	want = append(want, "abc"...)
	want = append(want, 0x12)
	want = append(want, proto.EncodeVarint(200)...)
	want = append(want, bytes.Repeat([]byte{'x'}, 200)...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Write(): got %v want %v", buf.Bytes(), want)
	}
}

func TestReadSkipsUnknown(t *testing.T) {
	var b []byte
	// field 2, varint: unknown record
	b = append(b, 0x10)
	b = append(b, proto.EncodeVarint(12345)...)
	// field 1: entry with an unknown field 3 and then key and value
	ent := []byte{0x18, 0x07, 0x0A, 0x01, 'k', 0x12, 0x01, 'v'}
	b = append(b, 0x0A)
	b = append(b, proto.EncodeVarint(uint64(len(ent)))...)
	b = append(b, ent...)

	db := openDB(t, "pebble", "test_read_skips_unknown")
	cnt, err := dump.Read(bytes.NewReader(b), db)
	if err != nil {
		t.Fatalf("Read() failed with %s", err)
	} else if cnt != 1 {
		t.Errorf("Read() got %d want 1", cnt)
	}

	if diff := cmp.Diff([]keyVal{{"k", "v"}}, allKeyVals(t, db)); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBad(t *testing.T) {
	cases := [][]byte{
		{0x0A},
		{0x0A, 0x05, 0x0A, 0x01},
		{0x0A, 0x03, 0x12, 0x01, 'v'},
		{0x0A, 0x04, 0x0A, 0x01, 'k', 0x12},
		{0x0B},
	}

	for _, c := range cases {
		db := openDB(t, "pebble", "test_read_bad")
		_, err := dump.Read(bytes.NewReader(append([]byte{0x0A, 0x03, 0x0A, 0x01, 'a'}, c...)),
			db)
		if err == nil {
			t.Errorf("Read(%v) did not fail", c)
		}
		if kvs := allKeyVals(t, db); len(kvs) != 0 {
			t.Errorf("Read(%v) set %v", c, kvs)
		}
	}
}
