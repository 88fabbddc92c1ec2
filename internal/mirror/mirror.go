// Package mirror decides when reflection unlocks and runs the reflection
// request against an external generator.
//
// The reflection view moves between three phases: locked until enough
// entries exist, idle once unlocked, and generating while a request is in
// flight. Only one request may be in flight at a time; the orchestrator
// enforces this itself rather than trusting callers to disable their
// controls.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/domain"
	"github.com/pbaille/journal/internal/metrics"
)

// ContextLimit bounds how many recent entries are handed to the generator
const ContextLimit = 50

// RegenerateAfter is how old the latest lexical reflection must be before a
// new one may be generated
const RegenerateAfter = 24 * time.Hour

const defaultTimeout = 60 * time.Second

var (
	ErrLocked      = errors.New("not enough entries to reflect")
	ErrTooSoon     = errors.New("latest reflection is less than a day old")
	ErrInFlight    = errors.New("a reflection is already being generated")
	ErrUnavailable = errors.New("reflection is unavailable")
)

// Generator turns recent entries into a few open questions
type Generator interface {
	Generate(ctx context.Context, entries []domain.Entry) ([]string, error)
}

// EntrySource is the read side of the entry repository. Epoch changes
// whenever the entries are cleared.
type EntrySource interface {
	Count() (int, error)
	Recent(n int) ([]domain.Entry, error)
	Epoch() uint64
}

// ReflectionStore is what the orchestrator needs from the reflection
// repository. UpsertSince must refuse to store when the entries were cleared
// after epoch.
type ReflectionStore interface {
	List() ([]domain.Reflection, error)
	Latest(t domain.ReflectionType) (*domain.Reflection, error)
	UpsertSince(epoch uint64, patterns []string, t domain.ReflectionType) (domain.Reflection, error)
}

// Phase is the state of the reflection view
type Phase string

const (
	PhaseLocked     Phase = "locked"
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
)

// RequestState tracks the most recent generation request
type RequestState string

const (
	RequestIdle      RequestState = "idle"
	RequestPending   RequestState = "pending"
	RequestFulfilled RequestState = "fulfilled"
	RequestFailed    RequestState = "failed"
)

// CanReflect reports whether entryCount unlocks lexical reflection
func CanReflect(entryCount int) bool {
	return entryCount >= domain.LexicalThreshold
}

// Progress returns how many entries exist and how many are needed
func Progress(entryCount int) (have, need int) {
	return entryCount, domain.LexicalThreshold
}

// CanRegenerate reports whether a new reflection may replace latest
func CanRegenerate(latest *domain.Reflection, now time.Time) bool {
	return latest == nil || now.Sub(latest.GeneratedAt) > RegenerateAfter
}

// Status describes the reflection view
type Status struct {
	Phase         Phase               `json:"phase"`
	EntryCount    int                 `json:"entry_count"`
	Threshold     int                 `json:"threshold"`
	CanRegenerate bool                `json:"can_regenerate"`
	Reflections   []domain.Reflection `json:"reflections"`
	LastRequest   RequestState        `json:"last_request"`
}

// Option configures a Mirror
type Option func(*Mirror)

// WithClock sets the source of the current instant
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTimeout bounds each generator call
func WithTimeout(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mirror orchestrates reflection requests
type Mirror struct {
	entries     EntrySource
	reflections ReflectionStore
	gen         Generator
	now         func() time.Time
	timeout     time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	request RequestState
}

// New creates a Mirror. gen may be nil, in which case every request
// fails as unavailable.
func New(entries EntrySource, reflections ReflectionStore, gen Generator, opts ...Option) *Mirror {
	m := &Mirror{
		entries:     entries,
		reflections: reflections,
		gen:         gen,
		now:         time.Now,
		timeout:     defaultTimeout,
		logger:      zap.NewNop(),
		request:     RequestIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status reports the current phase along with stored reflections
func (m *Mirror) Status() (Status, error) {
	count, err := m.entries.Count()
	if err != nil {
		return Status{}, fmt.Errorf("count entries: %w", err)
	}
	reflections, err := m.reflections.List()
	if err != nil {
		return Status{}, err
	}
	latest, err := m.reflections.Latest(domain.ReflectionLexical)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	request := m.request
	m.mu.Unlock()

	phase := PhaseIdle
	switch {
	case request == RequestPending:
		phase = PhaseGenerating
	case !CanReflect(count):
		phase = PhaseLocked
	}

	_, need := Progress(count)
	return Status{
		Phase:         phase,
		EntryCount:    count,
		Threshold:     need,
		CanRegenerate: CanReflect(count) && CanRegenerate(latest, m.now()),
		Reflections:   reflections,
		LastRequest:   request,
	}, nil
}

// Reflect generates and stores a new lexical reflection. It fails with
// ErrLocked, ErrTooSoon or ErrInFlight when the request is not allowed, and
// with ErrUnavailable when the generator fails or returns nothing; in that
// case stored reflections are left as they were. A request never stays
// pending past its return, even when the generator panics.
func (m *Mirror) Reflect(ctx context.Context) (domain.Reflection, error) {
	epoch, err := m.begin()
	if err != nil {
		return domain.Reflection{}, err
	}

	settled := RequestFailed
	defer func() {
		m.mu.Lock()
		m.request = settled
		m.mu.Unlock()
	}()

	reflection, err := m.generate(ctx, epoch)
	if err == nil {
		settled = RequestFulfilled
	}
	return reflection, err
}

// begin checks the gates, moves the request to pending and returns the
// entry epoch the request is based on
func (m *Mirror) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.request == RequestPending {
		metrics.ReflectionRequests.WithLabelValues("in_flight").Inc()
		return 0, ErrInFlight
	}

	epoch := m.entries.Epoch()
	count, err := m.entries.Count()
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	if !CanReflect(count) {
		metrics.ReflectionRequests.WithLabelValues("locked").Inc()
		return 0, ErrLocked
	}

	latest, err := m.reflections.Latest(domain.ReflectionLexical)
	if err != nil {
		return 0, err
	}
	if !CanRegenerate(latest, m.now()) {
		metrics.ReflectionRequests.WithLabelValues("too_soon").Inc()
		return 0, ErrTooSoon
	}

	m.request = RequestPending
	return epoch, nil
}

func (m *Mirror) generate(ctx context.Context, epoch uint64) (domain.Reflection, error) {
	if m.gen == nil {
		metrics.ReflectionRequests.WithLabelValues("failed").Inc()
		return domain.Reflection{}, fmt.Errorf("%w: no generator configured", ErrUnavailable)
	}

	recent, err := m.entries.Recent(ContextLimit)
	if err != nil {
		return domain.Reflection{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	patterns, err := m.gen.Generate(ctx, recent)
	metrics.ReflectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReflectionRequests.WithLabelValues("failed").Inc()
		m.logger.Warn("reflection generation failed", zap.Int("entries", len(recent)), zap.Error(err))
		return domain.Reflection{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	patterns = cleanPatterns(patterns)
	if len(patterns) == 0 {
		metrics.ReflectionRequests.WithLabelValues("empty").Inc()
		m.logger.Warn("reflection generator returned nothing", zap.Int("entries", len(recent)))
		return domain.Reflection{}, fmt.Errorf("%w: empty result", ErrUnavailable)
	}

	reflection, err := m.reflections.UpsertSince(epoch, patterns, domain.ReflectionLexical)
	if err != nil {
		metrics.ReflectionRequests.WithLabelValues("failed").Inc()
		m.logger.Warn("reflection discarded", zap.Uint64("epoch", epoch), zap.Error(err))
		return domain.Reflection{}, err
	}

	metrics.ReflectionRequests.WithLabelValues("fulfilled").Inc()
	m.logger.Info("reflection generated",
		zap.String("id", reflection.ID),
		zap.Int("patterns", len(patterns)),
		zap.Int("entries", len(recent)),
	)
	return reflection, nil
}

func cleanPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
