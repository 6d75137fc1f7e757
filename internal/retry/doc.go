// Package retry computes exponential backoff decisions for stage attempts and
// provides a context-aware sleep used between tries.
package retry
