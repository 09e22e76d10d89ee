package testsupport

import (
	"context"
	"testing"

	"carousel/internal/config"
	"carousel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewExport creates a takeout export item for tests using the provided store.
func NewExport(t testing.TB, store *queue.Store, exportName, fingerprint string) *queue.Item {
	t.Helper()

	item, err := store.NewExport(context.Background(), exportName, queue.SourceTakeout, "", fingerprint, "")
	if err != nil {
		t.Fatalf("store.NewExport: %v", err)
	}
	return item
}
