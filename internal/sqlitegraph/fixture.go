package sqlitegraph

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is a declarative graph: a YAML document listing vertices and
// the edges between them. Fixtures back in-memory runs and tests, where
// a hand-written graph beats a binary database file.
type Fixture struct {
	// Vertices declares every vertex. Ids must be unique and non-empty.
	Vertices []FixtureVertex `yaml:"vertices"`

	// Edges declares directed labeled edges. Both endpoints must be
	// declared in Vertices.
	Edges []FixtureEdge `yaml:"edges,omitempty"`
}

// FixtureVertex is one vertex declaration.
type FixtureVertex struct {
	ID         string         `yaml:"id"`
	Label      string         `yaml:"label"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// FixtureEdge is one directed edge declaration.
type FixtureEdge struct {
	Src   string `yaml:"src"`
	Dst   string `yaml:"dst"`
	Label string `yaml:"label"`
}

// LoadFixture reads and parses a fixture YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or declares an inconsistent graph.
func LoadFixture(path string) (*Fixture, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	return ParseFixture(data)
}

// ParseFixture parses fixture YAML from memory.
func ParseFixture(data []byte) (*Fixture, error) {
	// Parse YAML with strict field validation (catches typos like "vertexes:" vs "vertices:")
	var fixture Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate graph consistency
	if err := validateFixture(&fixture); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}

	return &fixture, nil
}

// validateFixture checks ids are present and unique and that every edge
// endpoint resolves to a declared vertex.
func validateFixture(f *Fixture) error {
	if len(f.Vertices) == 0 {
		return fmt.Errorf("vertices list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(f.Vertices))
	for _, v := range f.Vertices {
		if v.ID == "" {
			return fmt.Errorf("vertex with empty id")
		}
		if seen[v.ID] {
			return fmt.Errorf("vertex %s declared twice", v.ID)
		}
		seen[v.ID] = true
	}

	for _, e := range f.Edges {
		if !seen[e.Src] {
			return fmt.Errorf("edge %s-%s->%s references unknown vertex %s", e.Src, e.Label, e.Dst, e.Src)
		}
		if !seen[e.Dst] {
			return fmt.Errorf("edge %s-%s->%s references unknown vertex %s", e.Src, e.Label, e.Dst, e.Dst)
		}
	}

	return nil
}

// Apply loads the fixture into a store, vertices first so edge foreign
// keys resolve.
func (f *Fixture) Apply(ctx context.Context, s *Store) error {
	for _, v := range f.Vertices {
		if err := s.AddVertex(ctx, v.ID, v.Label, v.Properties); err != nil {
			return fmt.Errorf("apply fixture: %w", err)
		}
	}
	for _, e := range f.Edges {
		if err := s.AddEdge(ctx, e.Src, e.Dst, e.Label); err != nil {
			return fmt.Errorf("apply fixture: %w", err)
		}
	}
	return nil
}

// OpenFixture opens a fresh in-memory store seeded from a fixture file.
// The one-shot path behind "run --graph": parse, validate, load, query,
// throw away.
func OpenFixture(ctx context.Context, path string) (*Store, error) {
	fixture, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}

	s, err := OpenMemory()
	if err != nil {
		return nil, err
	}
	if err := fixture.Apply(ctx, s); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}
