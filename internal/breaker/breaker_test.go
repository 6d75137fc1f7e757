package breaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("storage-upload", Settings{FailureThreshold: threshold, Cooldown: cooldown})
	b.now = clock.Now
	return b, clock
}

func admit(t *testing.T, b *Breaker) Ticket {
	t.Helper()
	ticket, ok := b.Allow()
	if !ok {
		t.Fatalf("breaker %s rejected call in state %s", b.Name(), b.State())
	}
	return ticket
}

func allowed(b *Breaker) bool {
	_, ok := b.Allow()
	return ok
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		b.RecordFailure(admit(t, b))
		if b.State() != StateClosed {
			t.Fatalf("breaker opened before threshold after %d failures", i+1)
		}
	}
	b.RecordFailure(admit(t, b))
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if allowed(b) {
		t.Fatal("expected rejection while open")
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	b.RecordFailure(admit(t, b))
	b.RecordSuccess(admit(t, b))
	b.RecordFailure(admit(t, b))
	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures should not open; got %s", b.State())
	}
}

func TestBreakerSingleProbeAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, 30*time.Second)
	b.RecordFailure(admit(t, b))
	clock.Advance(29 * time.Second)
	if allowed(b) {
		t.Fatal("expected rejection before cooldown elapses")
	}
	clock.Advance(time.Second)
	probe, ok := b.Allow()
	if !ok || !probe.Probe() {
		t.Fatal("expected probe to be admitted after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", b.State())
	}
	if allowed(b) {
		t.Fatal("second caller must not be admitted while probe is in flight")
	}
	b.RecordSuccess(probe)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", b.State())
	}
	if !allowed(b) {
		t.Fatal("expected closed breaker to allow")
	}
}

func TestBreakerProbeFailureRestartsCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)
	b.RecordFailure(admit(t, b))
	clock.Advance(10 * time.Second)
	probe := admit(t, b)
	clock.Advance(5 * time.Second)
	b.RecordFailure(probe)
	if b.State() != StateOpen {
		t.Fatalf("expected reopen, got %s", b.State())
	}
	clock.Advance(9 * time.Second)
	if allowed(b) {
		t.Fatal("cooldown should restart from the probe failure")
	}
	clock.Advance(time.Second)
	if !allowed(b) {
		t.Fatal("expected a new probe after the restarted cooldown")
	}
}

func TestBreakerReleaseReturnsProbeSlot(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.RecordFailure(admit(t, b))
	clock.Advance(time.Second)
	probe := admit(t, b)
	b.Release(probe)
	if b.State() != StateHalfOpen {
		t.Fatalf("release must not change state, got %s", b.State())
	}
	if !allowed(b) {
		t.Fatal("expected released probe slot to be reusable")
	}
}

func TestBreakerStaleReleaseKeepsProbeExclusive(t *testing.T) {
	b, clock := newTestBreaker(2, time.Second)
	early := admit(t, b)
	b.RecordFailure(admit(t, b))
	b.RecordFailure(admit(t, b))
	clock.Advance(2 * time.Second)
	probe := admit(t, b)

	b.Release(early)
	if allowed(b) {
		t.Fatal("release from a call admitted before the breaker opened freed the probe slot")
	}
	b.Release(probe)
	if !allowed(b) {
		t.Fatal("release from the probe itself must free the slot")
	}
}

func TestBreakerStaleVerdictsIgnored(t *testing.T) {
	b, clock := newTestBreaker(2, time.Second)
	early := admit(t, b)
	b.RecordFailure(admit(t, b))
	b.RecordFailure(admit(t, b))
	clock.Advance(2 * time.Second)
	probe := admit(t, b)

	b.RecordSuccess(early)
	if b.State() != StateHalfOpen {
		t.Fatalf("stale success must not close the breaker, got %s", b.State())
	}
	b.RecordFailure(early)
	if b.State() != StateHalfOpen {
		t.Fatalf("stale failure must not reopen the breaker, got %s", b.State())
	}
	if allowed(b) {
		t.Fatal("probe slot must stay taken after stale verdicts")
	}
	b.RecordSuccess(probe)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", b.State())
	}
	snap := b.Snapshot()
	if snap.Stats.Successes != 2 || snap.Stats.Failures != 3 {
		t.Fatalf("stale verdicts should still be counted: %+v", snap.Stats)
	}
}

func TestBreakerConcurrentProbeExclusive(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.RecordFailure(admit(t, b))
	clock.Advance(2 * time.Second)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed(b) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := admitted.Load(); got != 1 {
		t.Fatalf("expected exactly one probe, got %d", got)
	}
	snap := b.Snapshot()
	if snap.Stats.Rejections != 63 {
		t.Fatalf("expected 63 rejections, got %d", snap.Stats.Rejections)
	}
}

func TestBreakerOnlyLegalTransitions(t *testing.T) {
	b, clock := newTestBreaker(2, time.Second)
	var seen []string
	b.onChange = func(_ string, from, to State) {
		seen = append(seen, string(from)+">"+string(to))
	}
	b.RecordFailure(admit(t, b))
	b.RecordFailure(admit(t, b))
	clock.Advance(time.Second)
	b.RecordFailure(admit(t, b))
	clock.Advance(time.Second)
	b.RecordSuccess(admit(t, b))

	legal := map[string]bool{
		"closed>open":      true,
		"open>half_open":   true,
		"half_open>closed": true,
		"half_open>open":   true,
	}
	want := []string{"closed>open", "open>half_open", "half_open>open", "open>half_open", "half_open>closed"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i, tr := range seen {
		if !legal[tr] || tr != want[i] {
			t.Fatalf("unexpected transition %q at %d (all: %v)", tr, i, seen)
		}
	}
}

func TestRegistryReturnsSameBreakerPerName(t *testing.T) {
	r := NewRegistry(Settings{FailureThreshold: 5, Cooldown: time.Minute},
		WithOverride("asset-source", Settings{FailureThreshold: 2, Cooldown: time.Second}))
	a := r.Get("storage-upload")
	if r.Get("storage-upload") != a {
		t.Fatal("expected same breaker instance")
	}
	src := r.Get("asset-source")
	if src.settings.FailureThreshold != 2 {
		t.Fatalf("override not applied: %+v", src.settings)
	}
	snaps := r.Snapshots()
	if len(snaps) != 2 || snaps[0].Name != "asset-source" || snaps[1].Name != "storage-upload" {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
}

func TestRegistryBreakersIndependent(t *testing.T) {
	r := NewRegistry(Settings{FailureThreshold: 1, Cooldown: time.Minute})
	upload := r.Get("storage-upload")
	upload.RecordFailure(admit(t, upload))
	if !allowed(r.Get("asset-source")) {
		t.Fatal("failure on one dependency must not affect another")
	}
}
