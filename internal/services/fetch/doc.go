// Package fetch downloads motion sources through hashicorp/go-getter.
//
// Any locator go-getter understands (http, https, s3, gcs, local paths) is
// accepted. Failures are tagged with the services error taxonomy so the stage
// executor can tell a flaky source from a missing or unauthorized one.
package fetch
