package graph

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Store owns the nodes of one narrative graph and enforces name uniqueness.
type Store struct {
	order  []*Node
	byName map[string]*Node
	byID   map[uuid.UUID]*Node
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byName: make(map[string]*Node),
		byID:   make(map[uuid.UUID]*Node),
	}
}

// AddNode creates a node with no connections and registers its name.
func (s *Store) AddNode(name, description string, x, y float64) (*Node, error) {
	if _, taken := s.byName[name]; taken {
		return nil, fmt.Errorf("cannot create node %q: %w", name, ErrDuplicateName)
	}
	pos, err := newPosition(x, y)
	if err != nil {
		return nil, fmt.Errorf("cannot create node %q: %w", name, err)
	}
	n := &Node{
		id:          uuid.New(),
		name:        name,
		Description: description,
		Position:    pos,
	}
	s.insert(n)
	return n, nil
}

// Restore inserts a node exactly as it was persisted. Connections are kept
// verbatim, including targets that do not resolve.
func (s *Store) Restore(name, description string, pos Position, connections []Connection) (*Node, error) {
	if _, taken := s.byName[name]; taken {
		return nil, fmt.Errorf("cannot restore node %q: %w", name, ErrDuplicateName)
	}
	pos, err := newPosition(pos.X, pos.Y)
	if err != nil {
		return nil, fmt.Errorf("cannot restore node %q: %w", name, err)
	}
	n := &Node{
		id:          uuid.New(),
		name:        name,
		Description: description,
		Position:    pos,
		connections: append([]Connection(nil), connections...),
	}
	s.insert(n)
	return n, nil
}

func (s *Store) insert(n *Node) {
	s.order = append(s.order, n)
	s.byName[n.name] = n
	s.byID[n.id] = n
}

// RemoveNode deletes n and frees its name. Connections in other nodes that
// target n are left in place.
func (s *Store) RemoveNode(n *Node) error {
	if !s.owns(n) {
		return ErrUnknownNode
	}
	delete(s.byName, n.name)
	delete(s.byID, n.id)
	for i, candidate := range s.order {
		if candidate == n {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// RenameNode gives n a new name. Renaming a node to the name it already has
// succeeds without changes.
func (s *Store) RenameNode(n *Node, newName string) error {
	if !s.owns(n) {
		return ErrUnknownNode
	}
	if holder, taken := s.byName[newName]; taken {
		if holder == n {
			return nil
		}
		return fmt.Errorf("cannot rename %q to %q: %w", n.name, newName, ErrDuplicateName)
	}
	delete(s.byName, n.name)
	s.byName[newName] = n
	n.name = newName
	return nil
}

// SetDescription replaces n's description.
func (s *Store) SetDescription(n *Node, description string) error {
	if !s.owns(n) {
		return ErrUnknownNode
	}
	n.Description = description
	return nil
}

// MoveNode updates n's canvas position.
func (s *Store) MoveNode(n *Node, x, y float64) error {
	if !s.owns(n) {
		return ErrUnknownNode
	}
	pos, err := newPosition(x, y)
	if err != nil {
		return fmt.Errorf("cannot move node %q: %w", n.name, err)
	}
	n.Position = pos
	return nil
}

// CheckPosition reports whether x and y are usable as a node position.
func CheckPosition(x, y float64) error {
	_, err := newPosition(x, y)
	return err
}

// newPosition rejects NaN and infinite coordinates and folds -0 into 0, so
// every stored position can be written back out as a plain literal.
func newPosition(x, y float64) (Position, error) {
	for _, v := range []float64{x, y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Position{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, x, y)
		}
	}
	if x == 0 {
		x = 0
	}
	if y == 0 {
		y = 0
	}
	return Position{X: x, Y: y}, nil
}

// AddConnection appends an edge from source to the node named target.
func (s *Store) AddConnection(source *Node, target, label string) error {
	if !s.owns(source) {
		return ErrUnknownNode
	}
	if _, ok := s.byName[target]; !ok {
		return fmt.Errorf("cannot connect %q to %q: %w", source.name, target, ErrUnknownTarget)
	}
	source.connections = append(source.connections, Connection{Target: target, Label: label})
	return nil
}

// RemoveConnection deletes the connection at index from source.
func (s *Store) RemoveConnection(source *Node, index int) error {
	if !s.owns(source) {
		return ErrUnknownNode
	}
	if index < 0 || index >= len(source.connections) {
		return fmt.Errorf("node %q index %d: %w", source.name, index, ErrUnknownConnection)
	}
	source.connections = append(source.connections[:index], source.connections[index+1:]...)
	return nil
}

// FindByName looks a node up by exact name.
func (s *Store) FindByName(name string) (*Node, bool) {
	n, ok := s.byName[name]
	return n, ok
}

// Node looks a node up by its handle.
func (s *Store) Node(id uuid.UUID) (*Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// Nodes returns the nodes in the order they were added.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, len(s.order))
	copy(out, s.order)
	return out
}

// Names returns the registered names in node order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.order))
	for _, n := range s.order {
		names = append(names, n.name)
	}
	return names
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	return len(s.order)
}

// DanglingConnections returns, per node name, the connections whose target
// does not currently resolve.
func (s *Store) DanglingConnections() map[string][]Connection {
	dangling := make(map[string][]Connection)
	for _, n := range s.order {
		for _, c := range n.connections {
			if _, ok := s.byName[c.Target]; !ok {
				dangling[n.name] = append(dangling[n.name], c)
			}
		}
	}
	return dangling
}

func (s *Store) owns(n *Node) bool {
	if n == nil {
		return false
	}
	owned, ok := s.byID[n.id]
	return ok && owned == n
}
