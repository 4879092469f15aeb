package sqlitegraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// VertexIDs returns vertex ids, all of them or one label's worth.
// An empty label means no label filter.
//
// Results are ordered deterministically: ORDER BY id COLLATE BINARY ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) VertexIDs(ctx context.Context, label string) ([]string, error) {
	query := `
		SELECT id
		FROM vertices
		ORDER BY id COLLATE BINARY ASC
	`
	var args []any
	if label != "" {
		query = `
			SELECT id
			FROM vertices
			WHERE label = ?
			ORDER BY id COLLATE BINARY ASC
		`
		args = append(args, label)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vertices: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vertex id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vertices: %w", err)
	}

	return ids, nil
}

// Out returns the out-adjacent vertex ids of src, optionally restricted
// to one edge label. An empty label means no label filter; an unknown
// src simply has no neighbors.
//
// Results are ordered deterministically: ORDER BY dst COLLATE BINARY ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Out(ctx context.Context, src, edgeLabel string) ([]string, error) {
	query := `
		SELECT dst
		FROM edges
		WHERE src = ?
		ORDER BY dst COLLATE BINARY ASC
	`
	args := []any{src}
	if edgeLabel != "" {
		query = `
			SELECT dst
			FROM edges
			WHERE src = ? AND label = ?
			ORDER BY dst COLLATE BINARY ASC
		`
		args = append(args, edgeLabel)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	dsts := []string{}
	for rows.Next() {
		var dst string
		if err := rows.Scan(&dst); err != nil {
			return nil, fmt.Errorf("scan edge dst: %w", err)
		}
		dsts = append(dsts, dst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	return dsts, nil
}

// VertexProperty reads a single property value off a vertex.
// The boolean reports presence: it is false when the vertex does not
// exist or does not carry the key, and neither case is an error.
//
// Values round-trip through JSON, so numbers come back as float64.
func (s *Store) VertexProperty(ctx context.Context, id, key string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT properties
		FROM vertices
		WHERE id = ?
	`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query vertex %s: %w", id, err)
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, false, fmt.Errorf("decode properties of %s: %w", id, err)
	}

	value, ok := props[key]
	return value, ok, nil
}

// CountVertices counts vertices storage-side, all of them or one
// label's worth. An empty label means no label filter.
func (s *Store) CountVertices(ctx context.Context, label string) (int64, error) {
	var (
		count int64
		err   error
	)
	if label == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vertices`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vertices WHERE label = ?`, label).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count vertices: %w", err)
	}

	return count, nil
}
