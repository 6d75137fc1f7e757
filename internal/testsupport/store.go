package testsupport

import (
	"testing"

	"blendflow/internal/checkpoint"
	"blendflow/internal/config"
)

// MustOpenStore opens a checkpoint store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
