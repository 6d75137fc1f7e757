package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"blendflow/internal/services"
)

// MaxJitter bounds the random perturbation applied to a computed wait.
const MaxJitter = 0.2

// Policy computes backoff decisions. The zero value is not useful; build one
// with New or fill every field.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter is the fractional perturbation, clamped to [0, MaxJitter].
	Jitter float64
	// Rand returns values in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// Decision is the policy's answer after a failed attempt.
type Decision struct {
	GiveUp bool
	Wait   time.Duration
}

// New builds a policy with jitter enabled at the maximum bound.
func New(maxRetries int, base, maxDelay time.Duration, multiplier float64) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  base,
		MaxDelay:   maxDelay,
		Multiplier: multiplier,
		Jitter:     MaxJitter,
	}
}

// MaxAttempts is the ceiling on tries for a single stage invocation.
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the un-jittered wait that follows a failed attempt n (1-based),
// capped at MaxDelay when one is configured.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	raw := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if raw > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// Next decides what to do after attempt n failed with err. Only transient
// failures are retried, and never past MaxAttempts.
func (p Policy) Next(attempt int, err error) Decision {
	if err != nil && !services.IsTransient(err) {
		return Decision{GiveUp: true}
	}
	if attempt >= p.MaxAttempts() {
		return Decision{GiveUp: true}
	}
	return Decision{Wait: p.jittered(attempt)}
}

// jittered perturbs Delay(n) by up to ±Jitter while keeping the wait at or
// above Delay(n-1), so the sequence never shrinks.
func (p Policy) jittered(attempt int) time.Duration {
	base := p.Delay(attempt)
	frac := p.Jitter
	if frac <= 0 || base <= 0 {
		return base
	}
	if frac > MaxJitter {
		frac = MaxJitter
	}
	r := p.random()
	wait := time.Duration(float64(base) * (1 + frac*(2*r-1)))
	if floor := p.Delay(attempt - 1); wait < floor {
		wait = floor
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (p Policy) random() float64 {
	if p.Rand != nil {
		r := p.Rand()
		if r < 0 {
			return 0
		}
		if r >= 1 {
			return math.Nextafter(1, 0)
		}
		return r
	}
	return rand.Float64()
}
