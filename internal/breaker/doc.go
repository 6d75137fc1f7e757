// Package breaker implements the per-dependency circuit breaker and the
// registry that owns one breaker per dependency name.
//
// A breaker moves closed -> open after a configured streak of consecutive
// failures, open -> half_open once the cooldown elapses, and half_open back to
// closed or open depending on the single probe's result. Each breaker has its
// own mutex, so contention on one dependency never stalls another.
package breaker
