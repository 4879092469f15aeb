// Package sqlitegraph is the SQLite-backed graph provider. It stores a
// directed labeled property graph, contributes the leaf steps that read
// it (scan, out, values), and registers the provider strategies that
// push work into storage and bind the store handle at finalization.
//
// Construction never touches the database: leaf steps are built
// unbound, and SourceBindingStrategy hands them the store during
// compilation, after every structural rewrite has settled.
package sqlitegraph
