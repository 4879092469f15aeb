package strategy

import (
	"fmt"
	"strings"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// Rewrite is one strategy application that changed the pipeline's
// rendering.
type Rewrite struct {
	Strategy string
	Category Category
	Before   string
	After    string
}

// Trace records one compilation: the pipeline as handed in, every
// rewrite that changed it, and the locked result.
type Trace struct {
	Mode         pipeline.ExecutionMode
	Initial      string
	Rewrites     []Rewrite
	Final        string
	Requirements string
}

// Explain compiles a clone of the traversal, recording the pipeline
// rendering around every strategy that changed it. The traversal passed
// in is left untouched.
func Explain(t *pipeline.Traversal, r *Registry, opts ...CompileOption) (*Trace, error) {
	if t == nil {
		return nil, &pipeline.ConstructionError{Site: "explain", Reason: "nil traversal"}
	}
	cp := t.Clone()
	trace := &Trace{Mode: cp.Mode(), Initial: pipeline.Render(cp)}
	opts = append(opts, withRewriteObserver(func(s Strategy, before, after string) {
		trace.Rewrites = append(trace.Rewrites, Rewrite{
			Strategy: s.Name(),
			Category: s.Category(),
			Before:   before,
			After:    after,
		})
	}))
	if err := Compile(cp, r, opts...); err != nil {
		return nil, err
	}
	trace.Final = pipeline.Render(cp)
	trace.Requirements = cp.Requirements().String()
	return trace, nil
}

// String renders the trace in the stable line-oriented form the CLI
// prints and golden tests pin.
func (tr *Trace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", tr.Mode)
	fmt.Fprintf(&b, "initial: %s\n", tr.Initial)
	for _, rw := range tr.Rewrites {
		fmt.Fprintf(&b, "%s (%s):\n", rw.Strategy, rw.Category)
		fmt.Fprintf(&b, "  before: %s\n", rw.Before)
		fmt.Fprintf(&b, "  after:  %s\n", rw.After)
	}
	fmt.Fprintf(&b, "final: %s\n", tr.Final)
	fmt.Fprintf(&b, "requirements: %s\n", tr.Requirements)
	return b.String()
}
