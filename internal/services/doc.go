// Package services defines shared utilities consumed by the stage handlers and
// the external integrations they call.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, dependency names, and
//     run identifiers for logging.
//   - The failure taxonomy: sentinel markers, the Wrap helper, and Classify,
//     which decides whether the executor retries, trips a breaker, or gives up.
//
// Concrete collaborators live in subpackages (fetch, blend, storage). Use these
// helpers when wiring new stage logic so retries and observability stay
// uniform across the pipeline.
package services
