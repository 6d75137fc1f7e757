// Package job holds the data model shared by the executor, worker pool, and
// orchestrator: jobs, stage outcomes, attempt records, and batch results.
package job
