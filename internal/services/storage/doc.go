// Package storage publishes blended artifacts.
//
// Two backends share one Publisher contract: a Google Cloud Storage bucket
// and a local directory. Object names are derived deterministically from the
// destination folder and the artifact's base name, so publishing the same
// artifact twice overwrites rather than duplicates it.
package storage
