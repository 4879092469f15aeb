package sqlitegraph

import (
	"context"
	"encoding/json"
	"fmt"
)

// AddVertex inserts a vertex with its properties.
// Vertex ids are caller-chosen strings and must be unique; inserting an
// existing id is an error, not an upsert.
//
// Properties are serialized to a JSON object. Reads go through JSON too,
// so numeric property values come back as float64.
func (s *Store) AddVertex(ctx context.Context, id, label string, properties map[string]any) error {
	if id == "" {
		return fmt.Errorf("add vertex: empty id")
	}
	if properties == nil {
		properties = map[string]any{}
	}

	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("add vertex %s: marshal properties: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vertices (id, label, properties)
		VALUES (?, ?, ?)
	`, id, label, string(props))
	if err != nil {
		return fmt.Errorf("add vertex %s: %w", id, err)
	}

	return nil
}

// AddEdge inserts a directed labeled edge.
// Both endpoints must already exist (foreign key constraint), and the
// (src, dst, label) triple must be new.
func (s *Store) AddEdge(ctx context.Context, src, dst, label string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (src, dst, label)
		VALUES (?, ?, ?)
	`, src, dst, label)
	if err != nil {
		return fmt.Errorf("add edge %s-%s->%s: %w", src, label, dst, err)
	}

	return nil
}
