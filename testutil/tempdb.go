package testutil

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leftmike/kvbind/kv"
)

var (
	tempDir = ""
)

func init() {
	flag.StringVar(&tempDir, "temp-dir", tempDir,
		"`directory` to create temporary databases in; default is the system temp directory")
}

// TempDBPath is a fresh, non-existent database path inside a private temporary directory.
// Closing it destroys any database opened at the path and removes the directory.
//
// A TempDBPath must not be copied. Hold the *TempDBPath for the whole scope it is needed
// in and pass Path() to callees, never the TempDBPath itself: whoever closes it destroys
// the database.
type TempDBPath struct {
	dir  string
	path string
	once sync.Once
	err  error
}

// MakeTempDBPath creates the temporary directory, named with prefix followed by a unique
// suffix. The caller must Close the returned TempDBPath.
func MakeTempDBPath(prefix string) (*TempDBPath, error) {
	dir, err := os.MkdirTemp(tempDir, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("testutil: temporary database path: %s", err)
	}

	return &TempDBPath{
		dir:  dir,
		path: filepath.Join(dir, "db"),
	}, nil
}

// NewTempDBPath is MakeTempDBPath for tests: failing to create the directory is fatal,
// and the path is closed when the test and its subtests complete. Failing to destroy the
// database or remove the directory, including because a database is still open at the
// path, fails the test.
func NewTempDBPath(tb testing.TB, prefix string) *TempDBPath {
	tb.Helper()

	tp, err := MakeTempDBPath(prefix)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(
		func() {
			err := tp.Close()
			if err != nil {
				tb.Fatal(err)
			}
		})
	return tp
}

func (tp *TempDBPath) Path() string {
	return tp.path
}

func (tp *TempDBPath) Dir() string {
	return tp.dir
}

func (tp *TempDBPath) String() string {
	return tp.path
}

// Close destroys the database at the path using default options and then removes the
// temporary directory. Only the first call does anything; later calls return its
// result.
func (tp *TempDBPath) Close() error {
	tp.once.Do(
		func() {
			err := kv.Destroy(kv.DefaultOptions(), tp.path)
			if err != nil {
				tp.err = fmt.Errorf("testutil: failed to destroy temporary database: %w", err)
				return
			}
			err = os.RemoveAll(tp.dir)
			if err != nil {
				tp.err = fmt.Errorf("testutil: failed to remove temporary directory: %w", err)
			}
		})
	return tp.err
}
