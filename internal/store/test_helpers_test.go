package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/components/internal/ir"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testIdentity returns an identity in the acme/shop/dev scope.
func testIdentity(name string) ir.Identity {
	return ir.Identity{
		Org:              "acme",
		App:              "shop",
		Stage:            "dev",
		Name:             name,
		ComponentName:    "storage",
		ComponentVersion: "1.0.0",
	}
}
