// Package pipeline provides the structural data model for compiled
// traversals: steps, the arena-backed step sequence, traversers, labels,
// scopes, and requirement sets.
//
// This package contains the model and its invariants only. All other
// internal packages import pipeline; pipeline imports nothing internal.
// This ensures the pipeline model remains the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Steps are owned exclusively by their containing Traversal
//   - The step sequence is an arena of slots with index links, never
//     pointer-linked structs, so it is acyclic by construction
//   - Removed slots are tombstoned, not compacted; indices held across a
//     rewrite stay valid
//   - Labels are NFC-normalized at attachment; label equality is
//     canonical-form equality
//   - Construction failures never leave a partially built step reachable
package pipeline
