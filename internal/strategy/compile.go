package strategy

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hopscotch/internal/pipeline"
)

type compileConfig struct {
	logger   *slog.Logger
	observer func(s Strategy, before, after string)
}

// CompileOption adjusts one Compile call.
type CompileOption func(*compileConfig)

// WithLogger routes per-strategy debug logging to l. The default logger
// discards everything.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// withRewriteObserver reports the pipeline rendering around every
// strategy whose application changed it. Explain installs it.
func withRewriteObserver(fn func(s Strategy, before, after string)) CompileOption {
	return func(c *compileConfig) { c.observer = fn }
}

// Compile runs the registry's strategies over the traversal and locks
// it. Strategies apply category by category in sealed order, each one
// visiting the root and every descendant child before the next begins;
// aggregate requirements are recomputed after every pass. Compiling an
// already-compiled traversal is a no-op.
func Compile(t *pipeline.Traversal, r *Registry, opts ...CompileOption) error {
	if t == nil {
		return &pipeline.ConstructionError{Site: "compile", Reason: "nil traversal"}
	}
	if r == nil {
		return &pipeline.ConstructionError{Site: "compile", Reason: "nil registry"}
	}
	if !r.Sealed() {
		return &pipeline.ConstructionError{Site: "compile", Reason: "registry is not sealed"}
	}
	if !t.IsRoot() {
		return &pipeline.ConstructionError{Site: "compile", Reason: "child traversals compile through their root"}
	}
	if t.Compiled() {
		return nil
	}

	cfg := compileConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, cat := range Categories() {
		for _, s := range r.Ordered(cat) {
			var before string
			if cfg.observer != nil {
				before = pipeline.Render(t)
			}
			beforeLen := t.Len()
			if err := applyToTree(s, t); err != nil {
				return fmt.Errorf("apply %s: %w", s.Name(), err)
			}
			t.RefreshRequirements()
			cfg.logger.Debug("strategy applied",
				"strategy", s.Name(),
				"category", s.Category(),
				"before", beforeLen,
				"after", t.Len(),
			)
			if cfg.observer != nil {
				if after := pipeline.Render(t); after != before {
					cfg.observer(s, before, after)
				}
			}
		}
	}

	t.Finalize()
	return nil
}

// applyToTree applies one strategy to the traversal, then to every
// descendant child, preorder. Children are fetched after the parent's
// rewrite so child traversals the strategy itself planted are visited
// too.
func applyToTree(s Strategy, t *pipeline.Traversal) error {
	if err := s.Apply(t); err != nil {
		return err
	}
	for _, child := range t.Children() {
		if err := applyToTree(s, child); err != nil {
			return err
		}
	}
	return nil
}
