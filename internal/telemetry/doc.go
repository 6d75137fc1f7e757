// Package telemetry turns execution events into OpenTelemetry metrics:
// attempt counts by outcome, stage durations, dependency errors by failure
// kind, worker utilization, and queue depth.
package telemetry
