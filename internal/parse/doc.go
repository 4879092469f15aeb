// Package parse loads CUE plan documents and builds unoptimized
// traversals from them. Every document is validated against the
// embedded schema before any step is constructed; loader errors carry
// the CUE path and position that failed. The loader never runs
// strategies, the caller compiles.
package parse
