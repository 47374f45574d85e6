// Package idtable assigns stable integer replacements for text strings.
//
// Each category (for example "ptid") has its own sequence starting at 1.
// The same (category, text) pair always maps to the same integer, and an
// administrator may install a one-shot skip range that the next allocation
// jumps over.
package idtable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"dicom-deidentifier/internal/store"
)

// ErrorValue is what GetInteger returns when no integer could be assigned.
// It must never be substituted into anonymized output.
const ErrorValue = "error"

// StoreName is the name of the table's file in the database directory.
const StoreName = "idtable"

const bucket = "integers"

var (
	// ErrUnavailable reports that the underlying store could not be read or written.
	ErrUnavailable     = errors.New("integer table unavailable")
	// ErrInvalidCategory reports a category containing "/", which would make
	// its keys indistinguishable from another category's.
	ErrInvalidCategory = errors.New("category must not contain /")
)

// Table is the persistent allocator. It owns its store handle.
type Table struct {
	mu      sync.Mutex
	store   *store.Store
	log     zerolog.Logger
	metrics *metrics
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used to report allocation failures.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Table) { t.log = l }
}

// WithRegisterer registers the table's counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Table) { t.metrics = newMetrics(reg) }
}

// Open opens the table stored in dir.
func Open(dir string, opts ...Option) (*Table, error) {
	s, err := store.Open(dir, StoreName)
	if err != nil {
		return nil, fmt.Errorf("open integer table: %w", err)
	}
	t := &Table{store: s, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = newMetrics(nil)
	}
	return t, nil
}

func valueKey(category, text string) string { return category + "/" + text }
func counterKey(category string) string     { return "__" + category + "__" }
func rangeKey(category string) string       { return "<<" + category + ">>" }

// GetInteger returns the integer assigned to text in category, assigning the
// next one if needed. The result is zero-padded to width digits when width is
// positive. On failure it returns ErrorValue and logs the cause.
func (t *Table) GetInteger(category, text string, width int) string {
	v, err := t.Allocate(category, text)
	if err != nil {
		t.log.Warn().Err(err).Str("category", strings.TrimSpace(category)).Msg("unable to assign integer")
		return ErrorValue
	}
	if width > 0 {
		return fmt.Sprintf("%0*d", width, v)
	}
	return fmt.Sprintf("%d", v)
}

// Allocate is GetInteger without formatting and with the error returned.
// A new assignment, the counter update and any range retirement are
// committed together.
func (t *Table) Allocate(category, text string) (int, error) {
	category = strings.TrimSpace(category)
	text = strings.TrimSpace(text)
	if strings.Contains(category, "/") {
		t.metrics.allocation(category, resultError)
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	key := valueKey(category, text)

	t.mu.Lock()
	defer t.mu.Unlock()

	var value int
	ok, err := t.store.Get(bucket, key, &value)
	if err != nil {
		t.metrics.allocation(category, resultError)
		return 0, unavailable("lookup", err)
	}
	if ok {
		t.metrics.allocation(category, resultMemoized)
		return value, nil
	}

	retired := false
	err = t.store.Update(func(tx *store.Tx) error {
		var last int
		if _, err := tx.Get(bucket, counterKey(category), &last); err != nil {
			return err
		}
		value = last + 1

		var r Range
		found, err := tx.Get(bucket, rangeKey(category), &r)
		if err != nil {
			return err
		}
		if found {
			value = r.Skip(value)
			if r.Passed(value) {
				if err := tx.Delete(bucket, rangeKey(category)); err != nil {
					return err
				}
				retired = true
			}
		}

		if err := tx.Put(bucket, counterKey(category), value); err != nil {
			return err
		}
		return tx.Put(bucket, key, value)
	})
	if err != nil {
		t.metrics.allocation(category, resultError)
		return 0, unavailable("assign", err)
	}

	t.metrics.allocation(category, resultAssigned)
	if retired {
		t.metrics.retired(category)
		t.log.Info().Str("category", category).Int("value", value).Msg("skip range retired")
	}
	return value, nil
}

// SetSkipRange installs the skip range [low, high] for category, replacing
// any previous one. It reports whether the range was stored.
func (t *Table) SetSkipRange(category string, low, high int) bool {
	category = strings.TrimSpace(category)
	r := NewRange(low, high)
	if strings.Contains(category, "/") {
		t.log.Warn().Err(ErrInvalidCategory).Str("category", category).Msg("unable to set skip range")
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.store.Update(func(tx *store.Tx) error {
		return tx.Put(bucket, rangeKey(category), r)
	})
	if err != nil {
		t.log.Warn().Err(unavailable("set skip range", err)).
			Str("category", category).Stringer("range", r).
			Msg("unable to set skip range")
		return false
	}
	return true
}

// SkipRange returns the active skip range for category, if any.
func (t *Table) SkipRange(category string) (Range, bool) {
	category = strings.TrimSpace(category)

	t.mu.Lock()
	defer t.mu.Unlock()

	var r Range
	ok, err := t.store.Get(bucket, rangeKey(category), &r)
	if err != nil {
		t.log.Warn().Err(unavailable("read skip range", err)).Str("category", category).Msg("unable to read skip range")
		return Range{}, false
	}
	return r, ok
}

// Entry is one stored key and its raw value.
type Entry struct {
	Key   string
	Value string
}

// Entries lists the whole table in key order.
func (t *Table) Entries() ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, err := t.store.Keys(bucket)
	if err != nil {
		return nil, unavailable("list", err)
	}
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		var raw json.RawMessage
		if _, err := t.store.Get(bucket, k, &raw); err != nil {
			return nil, unavailable("list", err)
		}
		entries = append(entries, Entry{Key: k, Value: string(raw)})
	}
	return entries, nil
}

// Close flushes and releases the table. Later calls fail.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
