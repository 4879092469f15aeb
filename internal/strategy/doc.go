// Package strategy holds the rewrite engine that turns a raw traversal
// into its compiled, locked form.
//
// A Strategy is one rewrite pass. Strategies are grouped into five
// categories applied in a fixed order; inside a category the order is a
// topological sort of declared runs-before/runs-after edges with name
// tie-break, computed once when the registry seals. Compile then walks
// the sealed order, applying each strategy to the root traversal and all
// of its descendant children before moving on, recomputing aggregate
// requirements after every pass, and finally locking the tree.
//
// Strategies are stateless values. Everything mutable belongs to the
// traversal under rewrite, so one strategy instance may serve concurrent
// compilations of independent traversals.
package strategy
