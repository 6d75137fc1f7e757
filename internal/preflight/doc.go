// Package preflight provides readiness checks for the filesystem paths and
// storage backends blendflow depends on.
//
// These checks run in two contexts:
//   - "blendflow run" calls RunAll before admitting any job and refuses to
//     start when a required directory is unusable.
//   - "blendflow doctor" prints every check alongside stage health, breaker
//     state, and checkpoint store health.
package preflight
