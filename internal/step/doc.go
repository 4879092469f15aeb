// Package step provides the concrete step library for hopscotch pipelines.
//
// Every type here implements pipeline.Step plus exactly one execution
// capability (map, expand, filter, side effect, reduce, seed, or batch).
// Steps are constructed by the parse layer or synthesized by strategies;
// they never construct each other except through the documented rewrites:
// the connective fold, which turns infix and/or markers into nested
// boolean steps, and the correlation protocol, which runs inside
// NewWhereStep and plants the start/end markers.
//
// Graph-backed leaf steps (scan, out, values) live in sqlitegraph, not
// here: this package has no storage dependency and stays importable by
// the strategy layer.
package step
