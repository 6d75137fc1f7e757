// Package stage defines the contract between the executor and the external
// collaborators behind each pipeline step, plus shared readiness types.
package stage
