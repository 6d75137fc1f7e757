// Package batch loads and validates YAML batch descriptors.
//
// A descriptor names the schema version, the workflow mode, optional upload
// settings, and one entry per job. Validation collects every problem into a
// single ValidationError so operators can fix a descriptor in one pass; a
// descriptor that fails validation never produces jobs.
package batch
