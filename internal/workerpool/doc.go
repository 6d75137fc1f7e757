// Package workerpool bounds how many jobs of a batch execute at once.
//
// Admission is FIFO through a weighted semaphore; every admitted job runs on
// its own goroutine and hands its result back over a channel to a single
// collector. Jobs that were never admitted when the context is cancelled are
// reported as cancelled without running.
package workerpool
