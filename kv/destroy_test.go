package kv_test

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/leftmike/kvbind/kv"
	"github.com/leftmike/kvbind/testutil"
)

func TestDestroy(t *testing.T) {
	for _, engine := range kv.Engines() {
		tp, err := testutil.MakeTempDBPath("test_destroy")
		if err != nil {
			t.Fatalf("MakeTempDBPath() failed with %s", err)
		}
		defer os.RemoveAll(tp.Dir())

		err = kv.Destroy(kv.DefaultOptions(), tp.Path())
		if err != nil {
			t.Errorf("%s: Destroy(missing) failed with %s", engine, err)
		}

		db, err := kv.Open(engineOptions(engine), tp.Path())
		if err != nil {
			t.Fatalf("%s: Open(%s) failed with %s", engine, tp, err)
		}
		err = db.Set([]byte("key"), []byte("val"))
		if err != nil {
			t.Errorf("%s: Set() failed with %s", engine, err)
		}

		err = kv.Destroy(kv.DefaultOptions(), tp.Path())
		if !errors.Is(err, kv.ErrOpen) {
			t.Errorf("%s: Destroy(open) got %v want %s", engine, err, kv.ErrOpen)
		}

		err = db.Close()
		if err != nil {
			t.Errorf("%s: Close() failed with %s", engine, err)
		}

		// The marker, not the options, decides which engine's files are removed.
		err = kv.Destroy(kv.DefaultOptions(), tp.Path())
		if err != nil {
			t.Errorf("%s: Destroy() failed with %s", engine, err)
		}
		if _, err := os.Stat(tp.Path()); !os.IsNotExist(err) {
			t.Errorf("%s: Stat(%s) got %v want not exist", engine, tp.Path(), err)
		}

		err = tp.Close()
		if err != nil {
			t.Errorf("%s: Close() failed with %s", engine, err)
		}
	}
}

func TestDestroyUnknownFiles(t *testing.T) {
	tp, err := testutil.MakeTempDBPath("test_destroy_unknown")
	if err != nil {
		t.Fatalf("MakeTempDBPath() failed with %s", err)
	}
	defer os.RemoveAll(tp.Dir())

	db, err := kv.Open(engineOptions("bbolt"), tp.Path())
	if err != nil {
		t.Fatalf("Open(%s) failed with %s", tp, err)
	}
	db.Close()

	notes := filepath.Join(tp.Path(), "notes.txt")
	err = ioutil.WriteFile(notes, []byte("not part of the database"), 0644)
	if err != nil {
		t.Fatalf("WriteFile(%s) failed with %s", notes, err)
	}

	err = kv.Destroy(kv.DefaultOptions(), tp.Path())
	if err == nil {
		t.Errorf("Destroy() with unknown files did not fail")
	}

	left, err := testutil.Residue(tp.Path())
	if err != nil {
		t.Fatalf("Residue(%s) failed with %s", tp.Path(), err)
	}
	if len(left) != 1 || left[0] != "notes.txt" {
		t.Errorf("Residue(%s) got %v want [notes.txt]", tp.Path(), left)
	}

	err = os.Remove(notes)
	if err != nil {
		t.Fatalf("Remove(%s) failed with %s", notes, err)
	}
	err = tp.Close()
	if err != nil {
		t.Errorf("Close() failed with %s", err)
	}
}

func TestDestroyWithoutMarker(t *testing.T) {
	tp := testutil.NewTempDBPath(t, "test_destroy_without_marker")

	err := os.Mkdir(tp.Path(), 0755)
	if err != nil {
		t.Fatalf("Mkdir(%s) failed with %s", tp.Path(), err)
	}
	err = ioutil.WriteFile(filepath.Join(tp.Path(), "data.bbolt"), nil, 0644)
	if err != nil {
		t.Fatalf("WriteFile(data.bbolt) failed with %s", err)
	}

	err = kv.Destroy(kv.DefaultOptions(), tp.Path())
	if err == nil {
		t.Errorf("Destroy(pebble) of bbolt files did not fail")
	}

	opts := kv.DefaultOptions()
	opts.Engine = "bbolt"
	err = kv.Destroy(opts, tp.Path())
	if err != nil {
		t.Errorf("Destroy(bbolt) failed with %s", err)
	}
}

func TestOpenFailureCleanup(t *testing.T) {
	tp := testutil.NewTempDBPath(t, "test_open_failure_cleanup")

	// bbolt can't open its data file when a directory is in the way.
	err := os.MkdirAll(filepath.Join(tp.Path(), "data.bbolt"), 0755)
	if err != nil {
		t.Fatalf("MkdirAll(%s) failed with %s", tp.Path(), err)
	}

	_, err = kv.Open(engineOptions("bbolt"), tp.Path())
	if err == nil {
		t.Fatalf("Open(%s) did not fail", tp)
	}

	left, err := testutil.Residue(tp.Path())
	if err != nil {
		t.Fatalf("Residue(%s) failed with %s", tp.Path(), err)
	} else if len(left) != 0 {
		t.Errorf("Residue(%s) got %v want nothing", tp.Path(), left)
	}

	db, err := kv.Open(engineOptions("pebble"), tp.Path())
	if err != nil {
		t.Fatalf("Open(%s) after failed open failed with %s", tp, err)
	}
	db.Close()
}
