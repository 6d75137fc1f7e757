// Package checkpoint persists completed stages and attempt history in SQLite.
//
// A checkpoint records that a stage finished successfully for a job key along
// with the artifact it produced. The orchestrator consults checkpoints on the
// next run of the same descriptor and skips stages that already completed, so
// re-running a partially failed batch only repeats the unfinished work.
//
// The database is local state for resumption, not an archive. Schema changes
// bump schemaVersion; operators delete the database to adopt a new schema.
package checkpoint
