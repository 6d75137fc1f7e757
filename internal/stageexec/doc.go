// Package stageexec runs one stage of one job: it consults the dependency's
// circuit breaker before every attempt, applies the stage timeout, classifies
// failures, and sleeps between retries according to the retry policy. Every
// attempt is appended to the stage outcome and reported to telemetry.
package stageexec
