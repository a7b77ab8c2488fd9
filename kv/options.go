package kv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	maxLevels = 7
)

// Options configures a database. The zero value is not useful; start from DefaultOptions.
// Settings that the selected engine has no equivalent for are logged as warnings and
// otherwise ignored.
type Options struct {
	Engine          string
	CreateIfMissing bool
	ErrorIfExists   bool
	SyncWrites      bool
	InfoLogLevel    string

	NumLevels               int
	Parallelism             int
	Level0CompactionTrigger int
	WriteBufferSize         int64

	BlockSize            int
	BlockRestartInterval int
	IndexBlockSize       int
	BlockCacheSize       int64
	BloomBitsPerKey      int
	Compression          string

	// InfoLog receives the options and any engine messages. If nil, Open logs to a LOG
	// file in the database directory.
	InfoLog *log.Logger
}

type ReadOptions struct {
	VerifyChecksums bool
}

type Param struct {
	Name  string
	Value string
	Size  bool
}

type value interface {
	Set(s string) error
	SetValue(v interface{}) error
	String() string
}

type param struct {
	name string
	val  value
}

func DefaultOptions() Options {
	return Options{
		Engine:                  "pebble",
		InfoLogLevel:            "info",
		NumLevels:               maxLevels,
		Parallelism:             1,
		Level0CompactionTrigger: 4,
		WriteBufferSize:         4 << 20,
		BlockSize:               4096,
		BlockRestartInterval:    16,
		IndexBlockSize:          4096,
		BlockCacheSize:          8 << 20,
		Compression:             "snappy",
	}
}

func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		VerifyChecksums: true,
	}
}

// IncreaseParallelism allows up to n background jobs (flushes and compactions).
func (o *Options) IncreaseParallelism(n int) {
	o.Parallelism = n
}

// params must stay sorted by name.
func (o *Options) params() []param {
	return []param{
		{"block_cache_size", (*sizeValue)(&o.BlockCacheSize)},
		{"block_restart_interval", (*intValue)(&o.BlockRestartInterval)},
		{"block_size", (*intValue)(&o.BlockSize)},
		{"bloom_bits_per_key", (*intValue)(&o.BloomBitsPerKey)},
		{"compression", (*stringValue)(&o.Compression)},
		{"create_if_missing", (*boolValue)(&o.CreateIfMissing)},
		{"engine", (*stringValue)(&o.Engine)},
		{"error_if_exists", (*boolValue)(&o.ErrorIfExists)},
		{"index_block_size", (*intValue)(&o.IndexBlockSize)},
		{"info_log_level", (*stringValue)(&o.InfoLogLevel)},
		{"level0_file_num_compaction_trigger", (*intValue)(&o.Level0CompactionTrigger)},
		{"max_background_jobs", (*intValue)(&o.Parallelism)},
		{"num_levels", (*intValue)(&o.NumLevels)},
		{"sync_writes", (*boolValue)(&o.SyncWrites)},
		{"write_buffer_size", (*sizeValue)(&o.WriteBufferSize)},
	}
}

func (o *Options) lookup(name string) (value, bool) {
	for _, p := range o.params() {
		if p.name == name {
			return p.val, true
		}
	}
	return nil, false
}

// Set sets the option called name from its string form.
func (o *Options) Set(name, s string) error {
	val, ok := o.lookup(name)
	if !ok {
		return fmt.Errorf("kv: %s is not an option", name)
	}
	err := val.Set(s)
	if err != nil {
		return fmt.Errorf("kv: option %s: %s", name, err)
	}
	return nil
}

// SetValue sets the option called name from a decoded configuration value: a bool, an
// int, or a string.
func (o *Options) SetValue(name string, v interface{}) error {
	val, ok := o.lookup(name)
	if !ok {
		return fmt.Errorf("kv: %s is not an option", name)
	}
	err := val.SetValue(v)
	if err != nil {
		return fmt.Errorf("kv: option %s: %s", name, err)
	}
	return nil
}

func (o Options) Params() []Param {
	var list []Param
	for _, p := range o.params() {
		_, size := p.val.(*sizeValue)
		list = append(list, Param{Name: p.name, Value: p.val.String(), Size: size})
	}
	return list
}

func (o Options) Validate() error {
	if _, ok := lookupEngine(o.Engine); !ok {
		return errors.Errorf("kv: got %s for engine; want %s", o.Engine,
			strings.Join(Engines(), ", "))
	}
	if o.NumLevels < 1 || o.NumLevels > maxLevels {
		return errors.Errorf("kv: num_levels must be between 1 and %d: %d", maxLevels,
			o.NumLevels)
	}
	if o.Parallelism < 1 {
		return errors.Errorf("kv: max_background_jobs must be positive: %d", o.Parallelism)
	}
	if o.Level0CompactionTrigger < 1 {
		return errors.Errorf("kv: level0_file_num_compaction_trigger must be positive: %d",
			o.Level0CompactionTrigger)
	}
	if o.WriteBufferSize <= 0 {
		return errors.Errorf("kv: write_buffer_size must be positive: %d", o.WriteBufferSize)
	}
	if o.BlockSize <= 0 || o.IndexBlockSize <= 0 {
		return errors.Errorf("kv: block_size and index_block_size must be positive: %d, %d",
			o.BlockSize, o.IndexBlockSize)
	}
	if o.BlockRestartInterval <= 0 {
		return errors.Errorf("kv: block_restart_interval must be positive: %d",
			o.BlockRestartInterval)
	}
	if o.BlockCacheSize < 0 || o.BloomBitsPerKey < 0 {
		return errors.Errorf("kv: block_cache_size and bloom_bits_per_key may not be negative")
	}
	switch o.Compression {
	case "snappy", "none":
	default:
		return errors.Errorf("kv: got %s for compression; want snappy or none", o.Compression)
	}
	if _, err := log.ParseLevel(o.InfoLogLevel); err != nil {
		return errors.Wrap(err, "kv: info_log_level")
	}
	return nil
}

func logOptions(logger *log.Logger, o Options) {
	for _, p := range o.Params() {
		logger.Infof("Options.%s: %s", p.Name, p.Value)
	}
}

// warnIgnored logs each named option that the engine does not support and that was
// changed from its default.
func warnIgnored(logger *log.Logger, engine string, o Options, names ...string) {
	def := DefaultOptions()
	for _, name := range names {
		val, _ := o.lookup(name)
		defVal, _ := def.lookup(name)
		if val.String() != defVal.String() {
			logger.Warnf("%s: %s is not supported; ignoring %s", engine, name, val)
		}
	}
}

type boolValue bool

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = boolValue(v)
	return nil
}

func (b *boolValue) SetValue(v interface{}) error {
	bv, ok := v.(bool)
	if !ok {
		return fmt.Errorf("parsing %v: invalid syntax", v)
	}
	*b = boolValue(bv)
	return nil
}

func (b *boolValue) String() string {
	return strconv.FormatBool(bool(*b))
}

type intValue int

func (i *intValue) Set(s string) error {
	v, err := strconv.ParseInt(s, 0, strconv.IntSize)
	if err != nil {
		return err
	}
	*i = intValue(v)
	return nil
}

func (i *intValue) SetValue(v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return fmt.Errorf("parsing %v: invalid syntax", v)
	}
	*i = intValue(iv)
	return nil
}

func (i *intValue) String() string {
	return strconv.Itoa(int(*i))
}

// sizeValue is a number of bytes; it accepts plain integers as well as sizes such as
// 64MB or 8MiB.
type sizeValue int64

func (sz *sizeValue) Set(s string) error {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	if v > 1<<62 {
		return fmt.Errorf("parsing %s: size too large", s)
	}
	*sz = sizeValue(v)
	return nil
}

func (sz *sizeValue) SetValue(v interface{}) error {
	switch v := v.(type) {
	case int:
		*sz = sizeValue(v)
		return nil
	case string:
		return sz.Set(v)
	}
	return fmt.Errorf("parsing %v: invalid syntax", v)
}

func (sz *sizeValue) String() string {
	return strconv.FormatInt(int64(*sz), 10)
}

type stringValue string

func (s *stringValue) Set(v string) error {
	*s = stringValue(v)
	return nil
}

func (s *stringValue) SetValue(v interface{}) error {
	sv, ok := v.(string)
	if !ok {
		return fmt.Errorf("parsing %v: invalid syntax", v)
	}
	*s = stringValue(sv)
	return nil
}

func (s *stringValue) String() string {
	return string(*s)
}
