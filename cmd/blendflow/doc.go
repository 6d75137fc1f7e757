// Command blendflow runs batches of BVH motion blends through the fetch,
// transform, and publish stages.
//
// Subcommands:
//   - run BATCH: execute a batch descriptor, resuming from checkpoints
//   - validate BATCH: check a descriptor without running it
//   - history: list recent checkpoints and attempts
//   - doctor: report directory, storage, stage, and breaker health
//   - config init|validate: manage the TOML configuration
//
// Exit status is 0 when every job succeeded, 1 when any job failed or the
// descriptor was invalid, and 130 when the run was interrupted.
package main
