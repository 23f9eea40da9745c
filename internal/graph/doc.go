// Package graph holds the narrative graph that the editor mutates and the
// traversal engine walks.
//
// # Model
//
// A Store owns a set of Nodes. Every node has a name that is unique across
// the store at all times; the store keeps its name registry in lock-step with
// the node collection, so a failed create or rename leaves both untouched.
//
// A node's outgoing edges are Connections: an ordered list of
// (target name, label) pairs. Connections refer to their target by name, not
// by pointer:
//   - **Creation is validated:** AddConnection rejects targets that are not
//     currently registered (ErrUnknownTarget).
//   - **Deletion does not cascade:** RemoveNode leaves other nodes'
//     connections pointing at the removed name. Consumers that follow edges
//     (traversal, export) must handle such dangling targets.
//   - **Restore is verbatim:** Restore, used by document loaders, inserts
//     connections exactly as persisted, dangling or not.
//
// # Identity
//
// Each node also carries a random uuid handle. Names change on rename; the
// handle does not, so UI layers can keep referring to "the node under the
// cursor" across renames. Handles are not persisted.
//
// # Concurrency
//
// A Store is not safe for concurrent use. The editor drives it from a single
// logical thread; callers that serve several goroutines (see the session
// package) serialize access themselves.
package graph
