// Package publishing implements the publish stage. It uploads the blended
// motion with job metadata to the configured storage backend.
package publishing
