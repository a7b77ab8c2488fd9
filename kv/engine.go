package kv

import (
	"bytes"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

type engine interface {
	open(path string, opts Options, logger *log.Logger) (store, error)

	// owns reports whether the directory entry name is one of the engine's files.
	owns(name string) bool
}

type store interface {
	get(key []byte, fn func(val []byte) error) error
	iterate(minKey, maxKey []byte) (Iterator, error)
	apply(ops []op, sync bool) error
	flush() error
	stats() string
	close() error
}

// Iterator walks keys in ascending order. Item calls fn with the current key and value,
// which are only valid during the call, and advances; it returns io.EOF after the last
// key.
type Iterator interface {
	Item(fn func(key, val []byte) error) error
	Close()
}

type op struct {
	key []byte
	val []byte
	del bool
}

var (
	enginesMutex sync.RWMutex
	engines      = map[string]engine{}
)

func register(name string, eng engine) {
	enginesMutex.Lock()
	defer enginesMutex.Unlock()

	if eng == nil {
		panic("kv: register engine is nil")
	}
	if _, dup := engines[name]; dup {
		panic("kv: register called twice for engine: " + name)
	}
	engines[name] = eng
}

func lookupEngine(name string) (engine, bool) {
	enginesMutex.RLock()
	defer enginesMutex.RUnlock()

	eng, ok := engines[name]
	return eng, ok
}

// Engines returns the names of the available engines in sorted order.
func Engines() []string {
	enginesMutex.RLock()
	defer enginesMutex.RUnlock()

	var names []string
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pastMax(key, maxKey []byte) bool {
	return maxKey != nil && bytes.Compare(key, maxKey) > 0
}
