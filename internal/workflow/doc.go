// Package workflow runs a validated batch descriptor through the configured
// stages.
//
// The Orchestrator turns each descriptor entry into a job keyed by a digest
// of its inputs, restores stages a previous run already completed from the
// checkpoint store, and hands the jobs to the worker pool. Every job walks its
// mode's stage list in order through the stage executor, which owns retries,
// circuit breakers, and rate limits. A stage that does not succeed ends the
// job; later stages never start and other jobs are unaffected.
//
// Job state changes are validated against a fixed transition table so that a
// job can never leave a terminal state or skip backwards.
package workflow
