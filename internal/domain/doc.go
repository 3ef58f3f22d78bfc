// Package domain defines the core types of the butterfly exploration engine.
//
// # Core Types
//
// Node is one explorable item. It carries a local ID that is unique within a
// graph, an ExternalKey used to ask the remote source for related items, a
// versioned DisplayFields record and an ExpansionState.
//
// Link is a directed edge from the node being expanded to one of the items
// it revealed, labelled with a relation descriptor such as "4 days later".
//
// Graph is the live model of one session. It is seeded with exactly one node
// and only ever grows. It owns the identity allocator and the structural
// version counter that downstream reconciliation keys off.
//
// # Expansion Guard
//
// BeginExpansion is the single concurrency guard of the engine: a node moves
// Unexpanded -> Expanding once per attempt, and only CommitExpansion,
// CompleteEmpty or AbortExpansion move it out again. A second attempt while a
// request is outstanding returns ErrDenied.
//
// # Design Principles
//
// - No infrastructure concerns; the graph is not safe for concurrent use and
//   is owned by a single event loop
// - Failed mutations leave the graph exactly as it was
// - Positions live in the layout engine, not in the graph
package domain
