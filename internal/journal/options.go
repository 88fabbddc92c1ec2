// Package journal holds the entry and reflection repositories.
//
// Both repositories keep a whole collection per record in a store.KV and
// rewrite it on every change. Entries are kept newest first; that order is
// established on write and import, never by readers.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/store"
)

// Option configures a repository
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

func defaultOptions() options {
	return options{
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: zap.NewNop(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ledger is shared by the repositories of one journal. It serializes their
// writes and counts clears, so work derived from entries can tell whether
// they were forgotten in the meantime.
type ledger struct {
	mu    sync.Mutex
	epoch uint64
}

// Open returns the entry and reflection repositories of the journal kept in
// kv. They share one writer lock and one clear epoch.
func Open(kv store.KV, opts ...Option) (*Entries, *Reflections) {
	o := applyOptions(opts)
	l := &ledger{}
	return &Entries{kv: kv, opts: o, ledger: l}, &Reflections{kv: kv, opts: o, ledger: l}
}

// WithClock sets the source of the current instant
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDs sets the id generator
func WithIDs(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// loadRecord decodes the collection stored under key.
// A missing or undecodable record reads as empty; only store failures are
// returned.
func loadRecord[T any](kv store.KV, key string, logger *zap.Logger) ([]T, error) {
	raw, err := kv.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("discarding unreadable record", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return items, nil
}

func saveRecord(kv store.KV, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
