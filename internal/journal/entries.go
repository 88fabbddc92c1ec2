package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/domain"
	"github.com/pbaille/journal/internal/metrics"
	"github.com/pbaille/journal/internal/store"
)

var (
	// ErrEmptyText is returned when an entry has no text after trimming
	ErrEmptyText = errors.New("entry text is empty")
	// ErrUnreadable is returned when an import payload is not valid JSON
	ErrUnreadable = errors.New("import payload is unreadable")
	// ErrCleared is returned when the journal was cleared after the epoch a
	// write was based on
	ErrCleared = errors.New("journal was cleared")
)

// Entries is the entry repository
type Entries struct {
	kv   store.KV
	opts options
	*ledger
}

// NewEntries creates a standalone entry repository over kv. Use Open when
// reflections are kept alongside.
func NewEntries(kv store.KV, opts ...Option) *Entries {
	return &Entries{kv: kv, opts: applyOptions(opts), ledger: &ledger{}}
}

// Create keeps a new entry and returns it
func (r *Entries) Create(text string) (domain.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Entry{}, ErrEmptyText
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := loadRecord[domain.Entry](r.kv, store.KeyEntries, r.opts.logger)
	if err != nil {
		return domain.Entry{}, err
	}

	entry := domain.Entry{
		ID:        r.opts.newID(),
		Timestamp: r.opts.now().UTC(),
		Text:      text,
	}

	updated := make([]domain.Entry, 0, len(existing)+1)
	updated = append(updated, entry)
	updated = append(updated, existing...)

	if err := saveRecord(r.kv, store.KeyEntries, updated); err != nil {
		return domain.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	metrics.EntriesKept.Inc()
	r.opts.logger.Debug("entry kept", zap.String("id", entry.ID), zap.Int("total", len(updated)))
	return entry, nil
}

// List returns every stored entry, newest first
func (r *Entries) List() ([]domain.Entry, error) {
	entries, err := loadRecord[domain.Entry](r.kv, store.KeyEntries, r.opts.logger)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

// Recent returns at most n of the newest entries
func (r *Entries) Recent(n int) ([]domain.Entry, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Count returns the number of stored entries
func (r *Entries) Count() (int, error) {
	entries, err := r.List()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Epoch returns the number of times the journal has been cleared
func (r *Entries) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Clear forgets every entry and every reflection. Reflections are derived
// from entries and go with them; a reflection based on an earlier epoch can
// no longer be stored.
func (r *Entries) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.epoch++
	if err := r.kv.Delete(store.KeyEntries, store.KeyReflections); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	r.opts.logger.Info("journal cleared", zap.Uint64("epoch", r.epoch))
	return nil
}

// ImportJSON imports an exported entries file. ErrUnreadable means the
// payload could not be parsed at all; a zero count means it parsed but held
// nothing new.
func (r *Entries) ImportJSON(data []byte) (int, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return r.Import(payload)
}

// Import merges decoded JSON candidates into the journal and returns how
// many were added. Anything that is not an array of well-formed entries is
// ignored, as is any id already present.
func (r *Entries) Import(candidates any) (int, error) {
	items, ok := candidates.([]any)
	if !ok {
		return 0, nil
	}

	var valid []domain.Entry
	for i, item := range items {
		switch v := Validate(item).(type) {
		case Valid:
			valid = append(valid, v.Entry)
		case Rejected:
			r.opts.logger.Debug("import candidate rejected", zap.Int("index", i), zap.String("reason", v.Reason))
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	added, err := r.Merge(valid)
	if err != nil {
		return 0, fmt.Errorf("import entries: %w", err)
	}

	r.opts.logger.Info("entries imported",
		zap.Int("candidates", len(items)),
		zap.Int("valid", len(valid)),
		zap.Int("added", added),
	)
	return added, nil
}

// Merge adds entries whose ids are not yet stored and re-sorts the whole
// collection newest first. Incoming entries may interleave in time with the
// stored ones, so appending is not enough.
func (r *Entries) Merge(incoming []domain.Entry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := loadRecord[domain.Entry](r.kv, store.KeyEntries, r.opts.logger)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e.ID] = struct{}{}
	}

	fresh := make([]domain.Entry, 0, len(incoming))
	for _, e := range incoming {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	combined := append(fresh, existing...)
	sortNewestFirst(combined)

	if err := saveRecord(r.kv, store.KeyEntries, combined); err != nil {
		return 0, err
	}
	metrics.EntriesImported.Add(float64(len(fresh)))
	return len(fresh), nil
}

// Export writes the stored entries as indented JSON
func (r *Entries) Export(w io.Writer) error {
	entries, err := r.List()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ExportFilename names an export file after the day it was taken
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("untitled-journal-export-%s.json", now.UTC().Format("2006-01-02"))
}

func sortNewestFirst(entries []domain.Entry) {
	slices.SortStableFunc(entries, func(a, b domain.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
