package journal

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/domain"
	"github.com/pbaille/journal/internal/store"
)

// Reflections is the reflection repository. It keeps only the latest
// reflection of each type.
type Reflections struct {
	kv   store.KV
	opts options
	*ledger
}

// List returns the stored reflections, most recently generated first
func (r *Reflections) List() ([]domain.Reflection, error) {
	reflections, err := loadRecord[domain.Reflection](r.kv, store.KeyReflections, r.opts.logger)
	if err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	if reflections == nil {
		reflections = []domain.Reflection{}
	}
	return reflections, nil
}

// Latest returns the stored reflection of type t, or nil
func (r *Reflections) Latest(t domain.ReflectionType) (*domain.Reflection, error) {
	reflections, err := r.List()
	if err != nil {
		return nil, err
	}
	for i := range reflections {
		if reflections[i].Type == t {
			return &reflections[i], nil
		}
	}
	return nil, nil
}

// Upsert stores a new reflection of type t, replacing the previous one
func (r *Reflections) Upsert(patterns []string, t domain.ReflectionType) (domain.Reflection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsert(patterns, t)
}

// UpsertSince is Upsert for a reflection drawn from the entries of the given
// epoch. It fails with ErrCleared when the journal was cleared since.
func (r *Reflections) UpsertSince(epoch uint64, patterns []string, t domain.ReflectionType) (domain.Reflection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.epoch != epoch {
		return domain.Reflection{}, fmt.Errorf("upsert reflection from epoch %d: %w", epoch, ErrCleared)
	}
	return r.upsert(patterns, t)
}

func (r *Reflections) upsert(patterns []string, t domain.ReflectionType) (domain.Reflection, error) {
	if !t.Valid() {
		return domain.Reflection{}, fmt.Errorf("unknown reflection type %q", t)
	}

	existing, err := loadRecord[domain.Reflection](r.kv, store.KeyReflections, r.opts.logger)
	if err != nil {
		return domain.Reflection{}, err
	}

	if patterns == nil {
		patterns = []string{}
	}
	reflection := domain.Reflection{
		ID:          r.opts.newID(),
		GeneratedAt: r.opts.now().UTC(),
		Patterns:    patterns,
		Type:        t,
	}

	updated := []domain.Reflection{reflection}
	for _, prev := range existing {
		if prev.Type != t {
			updated = append(updated, prev)
		}
	}

	if err := saveRecord(r.kv, store.KeyReflections, updated); err != nil {
		return domain.Reflection{}, fmt.Errorf("upsert reflection: %w", err)
	}

	r.opts.logger.Debug("reflection stored", zap.String("id", reflection.ID), zap.String("type", string(t)))
	return reflection, nil
}
