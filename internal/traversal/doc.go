// Package traversal plays a narrative graph: it starts at the entry node,
// shows the node's description and choices, and follows the connection the
// player picks until it reaches a node with no outgoing connections.
//
// # Choice resolution
//
// The label to target mapping is rebuilt from the current node's connection
// list on every step. When several connections share a label, the last one
// in the list wins. Choices are listed once each, in the order their label
// first appears.
//
// # Failure modes
//
//   - ErrMissingEntryNode: no node carries the entry name; nothing is played.
//   - ErrUnknownChoice: the input matches no label. The state is unchanged
//     and Run re-prompts.
//   - ErrDanglingConnectionTarget: the chosen connection names a node that
//     does not exist (deleted after the edge was made, or a hand-edited
//     document). The state is unchanged.
//   - ErrInputClosed: input ended before a terminal node was reached.
//
// The engine is an explicit loop over the current node, so cyclic stories
// can be played for as long as the player likes.
package traversal
