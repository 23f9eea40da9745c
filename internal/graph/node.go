package graph

import "github.com/google/uuid"

// DefaultDescription is the description given to nodes created from the
// editor before the author writes one.
const DefaultDescription = "Enter Node Description Here"

// Position is the node's location on the editor canvas. The core never
// interprets it; it is carried through persistence for the renderer.
type Position struct {
	X float64
	Y float64
}

// Connection is a directed, labeled edge. Target is the name of the node
// the edge leads to and Label is the choice text shown to the player.
type Connection struct {
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Node is a single vertex of the narrative graph.
type Node struct {
	id          uuid.UUID
	name        string
	Description string
	Position    Position
	connections []Connection
}

// ID returns the node's stable handle.
func (n *Node) ID() uuid.UUID {
	return n.id
}

// Name returns the node's current unique name.
func (n *Node) Name() string {
	return n.name
}

// Connections returns a copy of the node's outgoing connections in the
// order they were added.
func (n *Node) Connections() []Connection {
	out := make([]Connection, len(n.connections))
	copy(out, n.connections)
	return out
}

// IsTerminal reports whether the node has no outgoing connections.
func (n *Node) IsTerminal() bool {
	return len(n.connections) == 0
}
