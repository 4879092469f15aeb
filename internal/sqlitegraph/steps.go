package sqlitegraph

import (
	"context"
	"fmt"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// Graph leaf steps. They are built unbound, with no store handle, so
// plans can be constructed, rewritten, and rendered without a database
// anywhere near them. SourceBindingStrategy injects the handle during
// compilation; running an unbound step is an error.

// storeBound is satisfied by every step that reads the graph.
type storeBound interface {
	bindStore(s *Store)
}

// ScanStep seeds a pipeline with vertex ids, all of them or one label's
// worth. Mid-pipeline it acts as a pass-through, like every
// start-capable step handed input.
type ScanStep struct {
	pipeline.BaseStep
	vertexLabel string
	store       *Store
}

// NewScanStep creates a scan over vertices with the given label. An
// empty label scans every vertex.
func NewScanStep(vertexLabel string) *ScanStep {
	return &ScanStep{
		BaseStep:    pipeline.NewBaseStep("scan", pipeline.KindMap),
		vertexLabel: vertexLabel,
	}
}

// VertexLabel returns the label filter, empty for a full scan.
func (s *ScanStep) VertexLabel() string { return s.vertexLabel }

// Requirements declares the traverser features this step needs.
func (s *ScanStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step. A bound clone stays bound to the same
// store.
func (s *ScanStep) Clone() pipeline.Step {
	return &ScanStep{BaseStep: s.CloneBase(), vertexLabel: s.vertexLabel, store: s.store}
}

// Seed emits the matching vertex ids in deterministic order.
func (s *ScanStep) Seed(ctx context.Context) ([]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scan step is not bound to a graph source")
	}
	ids, err := s.store.VertexIDs(ctx, s.vertexLabel)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values, nil
}

func (s *ScanStep) String() string { return "scan(" + s.vertexLabel + ")" }

func (s *ScanStep) bindStore(store *Store) { s.store = store }

// OutStep walks outgoing edges: each incoming vertex id expands to its
// out-adjacent vertex ids, optionally along one edge label.
type OutStep struct {
	pipeline.BaseStep
	edgeLabel string
	store     *Store
}

// NewOutStep creates an out-traversal along edges with the given label.
// An empty label follows every outgoing edge.
func NewOutStep(edgeLabel string) *OutStep {
	return &OutStep{
		BaseStep:  pipeline.NewBaseStep("out", pipeline.KindMap),
		edgeLabel: edgeLabel,
	}
}

// EdgeLabel returns the label filter, empty for all edges.
func (s *OutStep) EdgeLabel() string { return s.edgeLabel }

// Requirements declares the traverser features this step needs.
func (s *OutStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step. A bound clone stays bound to the same
// store.
func (s *OutStep) Clone() pipeline.Step {
	return &OutStep{BaseStep: s.CloneBase(), edgeLabel: s.edgeLabel, store: s.store}
}

// Expand emits the out-neighbors of the incoming vertex id in
// deterministic order. A vertex with no matching edges expands to
// nothing.
func (s *OutStep) Expand(ctx context.Context, tr *pipeline.Traverser) ([]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("out step is not bound to a graph source")
	}
	id, ok := tr.Value().(string)
	if !ok {
		return nil, fmt.Errorf("out step expects a vertex id, got %T", tr.Value())
	}
	dsts, err := s.store.Out(ctx, id, s.edgeLabel)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(dsts))
	for i, dst := range dsts {
		values[i] = dst
	}
	return values, nil
}

func (s *OutStep) String() string { return "out(" + s.edgeLabel + ")" }

func (s *OutStep) bindStore(store *Store) { s.store = store }

// ValuesStep projects one property off each incoming vertex id. A
// vertex without the property emits nothing rather than erroring, so a
// projection over mixed labels stays useful.
type ValuesStep struct {
	pipeline.BaseStep
	key   string
	store *Store
}

// NewValuesStep creates a projection of the given property key.
func NewValuesStep(key string) *ValuesStep {
	return &ValuesStep{
		BaseStep: pipeline.NewBaseStep("values", pipeline.KindMap),
		key:      key,
	}
}

// Key returns the projected property key.
func (s *ValuesStep) Key() string { return s.key }

// Requirements declares the traverser features this step needs.
func (s *ValuesStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step. A bound clone stays bound to the same
// store.
func (s *ValuesStep) Clone() pipeline.Step {
	return &ValuesStep{BaseStep: s.CloneBase(), key: s.key, store: s.store}
}

// Expand emits the property value, or nothing when the vertex does not
// carry the key. Numbers come back as float64, the JSON round-trip.
func (s *ValuesStep) Expand(ctx context.Context, tr *pipeline.Traverser) ([]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("values step is not bound to a graph source")
	}
	id, ok := tr.Value().(string)
	if !ok {
		return nil, fmt.Errorf("values step expects a vertex id, got %T", tr.Value())
	}
	value, found, err := s.store.VertexProperty(ctx, id, s.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return []any{value}, nil
}

func (s *ValuesStep) String() string { return "values(" + s.key + ")" }

func (s *ValuesStep) bindStore(store *Store) { s.store = store }

// CountProbeStep is the storage-side collapse of a head scan feeding a
// count: one COUNT(*) query instead of materializing every vertex. It is
// never written in a plan; CountSourceStrategy synthesizes it.
type CountProbeStep struct {
	pipeline.BaseStep
	vertexLabel string
	store       *Store
}

// NewCountProbeStep creates a storage-side count of vertices with the
// given label. An empty label counts every vertex.
func NewCountProbeStep(vertexLabel string) *CountProbeStep {
	return &CountProbeStep{
		BaseStep:    pipeline.NewBaseStep("countProbe", pipeline.KindMap),
		vertexLabel: vertexLabel,
	}
}

// VertexLabel returns the label filter, empty for a full count.
func (s *CountProbeStep) VertexLabel() string { return s.vertexLabel }

// Requirements declares the traverser features this step needs.
func (s *CountProbeStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step. A bound clone stays bound to the same
// store.
func (s *CountProbeStep) Clone() pipeline.Step {
	return &CountProbeStep{BaseStep: s.CloneBase(), vertexLabel: s.vertexLabel, store: s.store}
}

// Seed emits the single count, as int64 like the count barrier it
// replaces.
func (s *CountProbeStep) Seed(ctx context.Context) ([]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("countProbe step is not bound to a graph source")
	}
	count, err := s.store.CountVertices(ctx, s.vertexLabel)
	if err != nil {
		return nil, err
	}
	return []any{count}, nil
}

func (s *CountProbeStep) String() string { return "countProbe(" + s.vertexLabel + ")" }

func (s *CountProbeStep) bindStore(store *Store) { s.store = store }
