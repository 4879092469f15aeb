package sqlitegraph

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new empty file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createModernStore creates an in-memory store loaded with the modern
// sample graph fixture.
func createModernStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenFixture(context.Background(), "testdata/modern.yaml")
	if err != nil {
		t.Fatalf("OpenFixture() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustAddVertex adds a vertex or fails the test.
func mustAddVertex(t *testing.T, s *Store, id, label string, properties map[string]any) {
	t.Helper()
	if err := s.AddVertex(context.Background(), id, label, properties); err != nil {
		t.Fatalf("AddVertex(%s) failed: %v", id, err)
	}
}

// mustAddEdge adds an edge or fails the test.
func mustAddEdge(t *testing.T, s *Store, src, dst, label string) {
	t.Helper()
	if err := s.AddEdge(context.Background(), src, dst, label); err != nil {
		t.Fatalf("AddEdge(%s, %s, %s) failed: %v", src, dst, label, err)
	}
}
