package kv

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	engineFile = "ENGINE"
	logFile    = "LOG"
)

var (
	ErrOpen    = errors.New("kv: database is open")
	ErrClosed  = errors.New("kv: database is closed")
	ErrCorrupt = errors.New("kv: value checksum mismatch")

	openMutex sync.Mutex
	openPaths = map[string]struct{}{}
)

type DB struct {
	mutex  sync.Mutex
	path   string
	key    string
	opts   Options
	st     store
	logger *log.Logger
	logW   io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// acquire claims path for this process; a path may be used by at most one open database
// or destroy at a time.
func acquire(path string) (string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "kv: %s", path)
	}

	openMutex.Lock()
	defer openMutex.Unlock()

	if _, ok := openPaths[key]; ok {
		return "", errors.Wrap(ErrOpen, path)
	}
	openPaths[key] = struct{}{}
	return key, nil
}

func release(key string) {
	openMutex.Lock()
	defer openMutex.Unlock()

	delete(openPaths, key)
}

func readEngineFile(path string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(path, engineFile))
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", errors.Wrapf(err, "kv: %s", path)
	}
	return strings.TrimSpace(string(b)), nil
}

func openLog(path string, opts Options) (*log.Logger, io.Closer, error) {
	if opts.InfoLog != nil {
		return opts.InfoLog, nopCloser{}, nil
	}

	w, err := os.OpenFile(filepath.Join(path, logFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "kv: %s", path)
	}
	fmt.Fprintln(w)

	ll, err := log.ParseLevel(opts.InfoLogLevel)
	if err != nil {
		w.Close()
		return nil, nil, err
	}

	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:          true,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
	})
	logger.SetLevel(ll)
	return logger, w, nil
}

// Open opens the database at path using the engine named by opts.
func Open(opts Options, path string) (*DB, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}
	eng, _ := lookupEngine(opts.Engine)

	key, err := acquire(path)
	if err != nil {
		return nil, err
	}

	db, err := open(eng, opts, path)
	if err != nil {
		release(key)
		return nil, err
	}
	db.key = key
	return db, nil
}

func open(eng engine, opts Options, path string) (*DB, error) {
	name, err := readEngineFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if !opts.CreateIfMissing {
			return nil, errors.Errorf("kv: %s: does not exist (create_if_missing is false)",
				path)
		}
	} else if opts.ErrorIfExists {
		return nil, errors.Errorf("kv: %s: exists (error_if_exists is true)", path)
	} else if name != opts.Engine {
		return nil, errors.Errorf("kv: %s: created by %s; can't open with %s", path, name,
			opts.Engine)
	}

	_, err = os.Stat(path)
	created := os.IsNotExist(err)
	err = os.MkdirAll(path, 0755)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: %s", path)
	}

	// The marker must exist before any of the engine's files.
	if name == "" {
		err = atomic.WriteFile(filepath.Join(path, engineFile),
			strings.NewReader(opts.Engine+"\n"))
		if err != nil {
			removeNew(eng, path, created)
			return nil, errors.Wrapf(err, "kv: %s", path)
		}
	}

	logger, logW, err := openLog(path, opts)
	if err != nil {
		if name == "" {
			removeNew(eng, path, created)
		}
		return nil, err
	}

	logger.WithFields(log.Fields{"path": path, "engine": opts.Engine}).Info(
		"kv: opening database")
	logOptions(logger, opts)

	st, err := eng.open(path, opts, logger)
	if err != nil {
		logger.WithField("path", path).Errorf("kv: open failed: %s", err)
		logW.Close()
		if name == "" {
			removeNew(eng, path, created)
		}
		return nil, errors.Wrapf(err, "kv: open %s", path)
	}

	return &DB{
		path:   path,
		opts:   opts,
		st:     st,
		logger: logger,
		logW:   logW,
	}, nil
}

// Destroy removes the database at path and everything the engine stored with it; a
// path with nothing at it is not an error. The engine is the one that created the
// database, falling back to opts.Engine. Files at path that don't belong to the
// database are left alone and reported as an error.
func Destroy(opts Options, path string) error {
	key, err := acquire(path)
	if err != nil {
		return err
	}
	defer release(key)

	ents, err := ioutil.ReadDir(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrapf(err, "kv: destroy %s", path)
	}

	name, err := readEngineFile(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = opts.Engine
	}
	eng, ok := lookupEngine(name)
	if !ok {
		return errors.Errorf("kv: destroy %s: unknown engine: %s", path, name)
	}

	unknown, err := removeFiles(eng, path, ents)
	if err != nil {
		return errors.Wrapf(err, "kv: destroy %s", path)
	}
	if len(unknown) > 0 {
		return errors.Errorf("kv: destroy %s: not removing unknown files: %s", path,
			strings.Join(unknown, ", "))
	}

	err = os.Remove(path)
	if err != nil {
		return errors.Wrapf(err, "kv: destroy %s", path)
	}
	return nil
}

// removeFiles removes the entries of path that belong to a database created by eng and
// returns the names of the rest.
func removeFiles(eng engine, path string, ents []os.FileInfo) ([]string, error) {
	var unknown []string
	for _, ent := range ents {
		n := ent.Name()
		if n == engineFile || n == logFile || strings.HasPrefix(n, logFile+".old") ||
			eng.owns(n) {

			err := os.RemoveAll(filepath.Join(path, n))
			if err != nil {
				return nil, err
			}
		} else {
			unknown = append(unknown, n)
		}
	}
	return unknown, nil
}

// removeNew undoes a failed create: it removes what was written at path and, if open
// created the directory and nothing else is in it, the directory too.
func removeNew(eng engine, path string, created bool) {
	ents, err := ioutil.ReadDir(path)
	if err != nil {
		return
	}
	unknown, err := removeFiles(eng, path, ents)
	if err == nil && len(unknown) == 0 && created {
		os.Remove(path)
	}
}

func (db *DB) store() (store, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.st == nil {
		return nil, errors.Wrap(ErrClosed, db.path)
	}
	return db.st, nil
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Options() Options {
	return db.opts
}

// Get calls fn with the value of key; it returns io.EOF if there is no such key.
func (db *DB) Get(ro ReadOptions, key []byte, fn func(val []byte) error) error {
	st, err := db.store()
	if err != nil {
		return err
	}

	return st.get(key,
		func(buf []byte) error {
			val, err := decodeValue(buf, ro.VerifyChecksums)
			if err != nil {
				return errors.Wrapf(err, "kv: key %q", key)
			}
			return fn(val)
		})
}

func (db *DB) Set(key, val []byte) error {
	st, err := db.store()
	if err != nil {
		return err
	}

	return st.apply([]op{{key: key, val: encodeValue(val)}}, db.opts.SyncWrites)
}

func (db *DB) Delete(key []byte) error {
	st, err := db.store()
	if err != nil {
		return err
	}

	return st.apply([]op{{key: key, del: true}}, db.opts.SyncWrites)
}

// Iterate returns an iterator over the keys from minKey to maxKey inclusive; a nil
// bound is unbounded.
func (db *DB) Iterate(ro ReadOptions, minKey, maxKey []byte) (Iterator, error) {
	st, err := db.store()
	if err != nil {
		return nil, err
	}

	it, err := st.iterate(minKey, maxKey)
	if err != nil {
		return nil, err
	}
	return checksumIterator{it: it, verify: ro.VerifyChecksums}, nil
}

func (db *DB) Flush() error {
	st, err := db.store()
	if err != nil {
		return err
	}

	return st.flush()
}

func (db *DB) Stats() string {
	st, err := db.store()
	if err != nil {
		return err.Error()
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "engine: %s\npath: %s\n", db.opts.Engine, db.path)
	buf.WriteString(st.stats())
	return buf.String()
}

// Close closes the database and releases its path; closing a closed database does
// nothing.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.st == nil {
		return nil
	}

	err := db.st.close()
	db.st = nil
	db.logger.WithField("path", db.path).Info("kv: closed database")
	db.logW.Close()
	release(db.key)
	if err != nil {
		return errors.Wrapf(err, "kv: close %s", db.path)
	}
	return nil
}
