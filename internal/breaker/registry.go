package breaker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"blendflow/internal/logging"
)

// Registry owns one breaker per dependency name. Its lock only guards the map;
// each breaker carries its own mutex.
type Registry struct {
	defaults  Settings
	overrides map[string]Settings
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// Option customises a registry.
type Option func(*Registry)

// WithClock injects the time source used by every breaker the registry creates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithOverride sets dependency-specific thresholds.
func WithOverride(name string, settings Settings) Option {
	return func(r *Registry) {
		r.overrides[name] = settings
	}
}

// WithLogger logs state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.NewComponentLogger(logger, "breaker")
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(defaults Settings, opts ...Option) *Registry {
	r := &Registry{
		defaults:  defaults,
		overrides: make(map[string]Settings),
		now:       time.Now,
		logger:    logging.NewNop(),
		breakers:  make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	settings := r.defaults
	if override, ok := r.overrides[name]; ok {
		settings = override
	}
	b := New(name, settings)
	b.now = r.now
	logger := r.logger
	b.onChange = func(dep string, from, to State) {
		level := slog.LevelInfo
		if to == StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "circuit breaker state changed",
			logging.String(logging.FieldDependency, dep),
			logging.String("from_state", string(from)),
			logging.String("to_state", string(to)),
			logging.String(logging.FieldEventType, "breaker_transition"),
		)
	}
	r.breakers[name] = b
	return b
}

// Snapshots returns the state of every known breaker ordered by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
