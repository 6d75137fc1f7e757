package breaker

import (
	"sync"
	"time"
)

// State is the breaker's position in its three-state machine.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Settings configures a breaker.
type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Stats are cumulative counters exposed for diagnostics.
type Stats struct {
	Requests     int64
	Successes    int64
	Failures     int64
	Rejections   int64
	StateChanges int64
}

// Snapshot is a point-in-time copy of a breaker's state.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
	Threshold           int
	Cooldown            time.Duration
	Stats               Stats
}

// Ticket identifies one admitted call. Verdicts carry the ticket back so a
// call admitted under an earlier generation cannot resolve the current one.
type Ticket struct {
	generation uint64
	probe      bool
}

// Probe reports whether the ticket was issued to a half-open probe.
func (t Ticket) Probe() bool { return t.probe }

// Breaker guards one named dependency. All state is mutated under mu.
// Every state change starts a new generation.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time
	onChange func(name string, from, to State)

	mu            sync.Mutex
	state         State
	generation    uint64
	failures      int
	openedAt      time.Time
	probeInFlight bool
	stats         Stats
}

// New constructs a closed breaker.
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold < 1 {
		settings.FailureThreshold = 1
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
		state:    StateClosed,
	}
}

// Name returns the dependency the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Allow reports whether a call may proceed and, if so, returns the ticket
// the caller hands back with its verdict. While open it rejects until the
// cooldown elapses, then moves to half-open and admits exactly one probe.
func (b *Breaker) Allow() (Ticket, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.stats.Requests++
		return Ticket{generation: b.generation}, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			b.stats.Rejections++
			return Ticket{}, false
		}
		b.transition(StateHalfOpen)
		return b.admitProbe(), true
	case StateHalfOpen:
		if b.probeInFlight {
			b.stats.Rejections++
			return Ticket{}, false
		}
		return b.admitProbe(), true
	default:
		return Ticket{}, false
	}
}

// admitProbe must be called with mu held.
func (b *Breaker) admitProbe() Ticket {
	b.probeInFlight = true
	b.stats.Requests++
	return Ticket{generation: b.generation, probe: true}
}

// current must be called with mu held.
func (b *Breaker) current(t Ticket) bool {
	return t.generation == b.generation
}

// RecordSuccess resets the failure streak and closes a half-open breaker.
// Verdicts from an earlier generation only count in the stats.
func (b *Breaker) RecordSuccess(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Successes++
	if !b.current(t) {
		return
	}
	b.failures = 0
	if b.state == StateHalfOpen && t.probe {
		b.probeInFlight = false
		b.transition(StateClosed)
	}
}

// RecordFailure extends the failure streak. Reaching the threshold while
// closed opens the breaker; a failed probe reopens it and restarts the cooldown.
// Verdicts from an earlier generation only count in the stats.
func (b *Breaker) RecordFailure(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Failures++
	if !b.current(t) {
		return
	}
	b.failures++
	switch b.state {
	case StateHalfOpen:
		if !t.probe {
			return
		}
		b.probeInFlight = false
		b.openedAt = b.now()
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.settings.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	}
}

// Release hands back a probe slot when the probe ended without a verdict on
// the dependency, such as a cancellation or an input error. It never changes
// state and ignores tickets that do not belong to the current probe.
func (b *Breaker) Release(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && t.probe && b.current(t) {
		b.probeInFlight = false
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot copies the breaker's state for diagnostics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
		Threshold:           b.settings.FailureThreshold,
		Cooldown:            b.settings.Cooldown,
		Stats:               b.stats,
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.stats.StateChanges++
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
