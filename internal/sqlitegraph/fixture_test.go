package sqlitegraph

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestLoadFixture_Modern(t *testing.T) {
	fixture, err := LoadFixture("testdata/modern.yaml")
	if err != nil {
		t.Fatalf("LoadFixture() failed: %v", err)
	}

	if len(fixture.Vertices) != 6 {
		t.Errorf("got %d vertices, want 6", len(fixture.Vertices))
	}
	if len(fixture.Edges) != 6 {
		t.Errorf("got %d edges, want 6", len(fixture.Edges))
	}

	marko := fixture.Vertices[0]
	if marko.ID != "marko" || marko.Label != "person" {
		t.Errorf("first vertex = %+v, want marko/person", marko)
	}
	if marko.Properties["name"] != "marko" {
		t.Errorf("marko name property = %v", marko.Properties["name"])
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture("testdata/nope.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestParseFixture_UnknownField(t *testing.T) {
	// "vertexes" is a typo for "vertices" and must be rejected
	_, err := ParseFixture([]byte(`
vertexes:
  - id: marko
    label: person
`))
	if err == nil {
		t.Error("expected error for unknown field, got nil")
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no vertices",
			yaml:    `edges: []`,
			wantErr: "vertices list is required",
		},
		{
			name: "empty id",
			yaml: `
vertices:
  - id: ""
    label: person
`,
			wantErr: "empty id",
		},
		{
			name: "duplicate id",
			yaml: `
vertices:
  - id: marko
    label: person
  - id: marko
    label: person
`,
			wantErr: "declared twice",
		},
		{
			name: "unknown edge endpoint",
			yaml: `
vertices:
  - id: marko
    label: person
edges:
  - {src: marko, dst: ghost, label: knows}
`,
			wantErr: "unknown vertex ghost",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestFixtureApply_RoundTrip(t *testing.T) {
	fixture, err := LoadFixture("testdata/modern.yaml")
	if err != nil {
		t.Fatalf("LoadFixture() failed: %v", err)
	}

	s := createTestStore(t)
	ctx := context.Background()
	if err := fixture.Apply(ctx, s); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	// The stored graph matches the declared adjacency
	count, err := s.CountVertices(ctx, "")
	if err != nil {
		t.Fatalf("CountVertices() failed: %v", err)
	}
	if count != 6 {
		t.Errorf("count = %d, want 6", count)
	}

	out, err := s.Out(ctx, "marko", "knows")
	if err != nil {
		t.Fatalf("Out() failed: %v", err)
	}
	if want := []string{"josh", "vadas"}; !reflect.DeepEqual(out, want) {
		t.Errorf("Out(marko, knows) = %v, want %v", out, want)
	}
}

func TestFixtureApply_Twice(t *testing.T) {
	fixture, err := LoadFixture("testdata/modern.yaml")
	if err != nil {
		t.Fatalf("LoadFixture() failed: %v", err)
	}

	s := createTestStore(t)
	ctx := context.Background()
	if err := fixture.Apply(ctx, s); err != nil {
		t.Fatalf("first Apply() failed: %v", err)
	}

	// Vertices already exist, so a second load is rejected
	if err := fixture.Apply(ctx, s); err == nil {
		t.Error("expected error applying fixture twice, got nil")
	}
}

func TestOpenFixture(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFixture(ctx, "testdata/modern.yaml")
	if err != nil {
		t.Fatalf("OpenFixture() failed: %v", err)
	}
	defer s.Close()

	count, err := s.CountVertices(ctx, "person")
	if err != nil {
		t.Fatalf("CountVertices() failed: %v", err)
	}
	if count != 4 {
		t.Errorf("person count = %d, want 4", count)
	}
}

func TestOpenFixture_InvalidFixture(t *testing.T) {
	_, err := OpenFixture(context.Background(), "testdata/nope.yaml")
	if err == nil {
		t.Error("expected error for missing fixture, got nil")
	}
}
