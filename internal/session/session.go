// Package session is the editor-facing API: it owns the graph being edited,
// the document path it was loaded from, and the single status message the
// UI shows for the most recent error.
//
// Nodes are addressed by name. A Session serializes all access with a
// mutex so it can back the HTTP API; it does not make concurrent authors
// safe, it only keeps one author's requests from interleaving.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/document"
	"github.com/specialistvlad/cyoaflow/internal/export"
	"github.com/specialistvlad/cyoaflow/internal/graph"
	"github.com/specialistvlad/cyoaflow/internal/traversal"
)

// ErrNoPath is returned by Save when neither the caller nor the session
// has a document path.
var ErrNoPath = errors.New("no document path to save to")

// NodeView is a read-only snapshot of a node.
type NodeView struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	X           float64            `json:"x"`
	Y           float64            `json:"y"`
	Connections []graph.Connection `json:"connections"`
}

// Option configures a Session.
type Option func(*Session)

// WithEntry sets the entry node name used by RunInPlace and Export.
func WithEntry(name string) Option {
	return func(s *Session) {
		s.entry = name
	}
}

// WithPath sets the document path Save uses when called without one.
func WithPath(path string) Option {
	return func(s *Session) {
		s.path = path
	}
}

// Session is one editing session over one graph.
type Session struct {
	mu sync.Mutex

	store *graph.Store
	path  string
	entry string

	savedDigest uint64
	status      string
}

// New starts a session over an empty graph.
func New(opts ...Option) *Session {
	s := &Session{
		store: graph.NewStore(),
		entry: traversal.DefaultEntry,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.savedDigest = digest(s.store)
	return s
}

// Open starts a session over the document at path.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	s := New(opts...)
	if err := s.Load(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

// record stores err as the status message, or clears it on success.
func (s *Session) record(err error) error {
	if err != nil {
		s.status = err.Error()
	} else {
		s.status = ""
	}
	return err
}

func (s *Session) lookup(name string) (*graph.Node, error) {
	n, ok := s.store.FindByName(name)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", name, graph.ErrUnknownNode)
	}
	return n, nil
}

// CreateNode adds a node with the default description.
func (s *Session) CreateNode(name string, x, y float64) (NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.AddNode(name, graph.DefaultDescription, x, y)
	if err != nil {
		return NodeView{}, s.record(err)
	}
	s.record(nil)
	return view(n), nil
}

// DeleteNode removes the named node. Connections into it are kept.
func (s *Session) DeleteNode(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.RemoveNode(n))
}

// RenameNode renames the named node.
func (s *Session) RenameNode(name, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.RenameNode(n, newName))
}

// SetDescription replaces the named node's description.
func (s *Session) SetDescription(name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.SetDescription(n, description))
}

// MoveNode updates the named node's canvas position.
func (s *Session) MoveNode(name string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.MoveNode(n, x, y))
}

// NodeUpdate lists the changes UpdateNode applies. Nil fields are left
// alone; X and Y only take effect together.
type NodeUpdate struct {
	Name        *string
	Description *string
	X           *float64
	Y           *float64
}

// UpdateNode applies u to the named node as one change: if any part is
// rejected, nothing is applied.
func (s *Session) UpdateNode(name string, u NodeUpdate) (NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return NodeView{}, s.record(err)
	}

	// Everything that can fail is checked before the first change. Rename
	// is applied atomically by the store.
	move := u.X != nil && u.Y != nil
	if move {
		if err := graph.CheckPosition(*u.X, *u.Y); err != nil {
			return NodeView{}, s.record(err)
		}
	}
	if u.Name != nil {
		if err := s.store.RenameNode(n, *u.Name); err != nil {
			return NodeView{}, s.record(err)
		}
	}
	if u.Description != nil {
		if err := s.store.SetDescription(n, *u.Description); err != nil {
			return NodeView{}, s.record(err)
		}
	}
	if move {
		if err := s.store.MoveNode(n, *u.X, *u.Y); err != nil {
			return NodeView{}, s.record(err)
		}
	}
	s.record(nil)
	return view(n), nil
}

// AddConnection adds an edge from source to target.
func (s *Session) AddConnection(source, target, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(source)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.AddConnection(n, target, label))
}

// RemoveConnection deletes the connection at index from source.
func (s *Session) RemoveConnection(source string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(source)
	if err != nil {
		return s.record(err)
	}
	return s.record(s.store.RemoveConnection(n, index))
}

// Nodes lists every node in creation order.
func (s *Session) Nodes() []NodeView {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.store.Nodes()
	views := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, view(n))
	}
	return views
}

// Node returns the named node.
func (s *Session) Node(name string) (NodeView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.store.FindByName(name)
	if !ok {
		return NodeView{}, false
	}
	return view(n), true
}

// Connections lists the named node's connections.
func (s *Session) Connections(name string) ([]graph.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return n.Connections(), nil
}

// Save writes the graph to path, or to the session's current path when
// path is empty. A successful save makes path the current path.
func (s *Session) Save(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path == "" {
		path = s.path
	}
	if path == "" {
		return s.record(ErrNoPath)
	}
	if err := document.Save(ctx, path, s.store); err != nil {
		return s.record(err)
	}
	s.path = path
	s.savedDigest = digest(s.store)
	ctxlog.FromContext(ctx).Info("Story saved.", "path", path, "nodes", s.store.Len())
	return s.record(nil)
}

// Load replaces the graph with the document at path. On failure the
// current graph is kept unchanged.
func (s *Session) Load(ctx context.Context, path string) error {
	store, err := document.Load(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		return s.record(err)
	}
	s.store = store
	s.path = path
	s.savedDigest = digest(store)
	ctxlog.FromContext(ctx).Info("Story loaded.", "path", path, "nodes", store.Len())
	return s.record(nil)
}

// Export writes a standalone bundle of the graph to path.
func (s *Session) Export(ctx context.Context, path string, opts ...export.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts = append([]export.Option{export.WithEntry(s.entry)}, opts...)
	return s.record(export.ExportToPath(ctx, path, s.store, opts...))
}

// RunInPlace plays a snapshot of the current graph. Edits made while the
// run is in progress do not affect it.
func (s *Session) RunInPlace(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	snapshot, err := document.Deserialize(document.Serialize(s.store))
	entry := s.entry
	s.mu.Unlock()
	if err != nil {
		return err
	}

	runErr := traversal.New(snapshot, traversal.WithEntry(entry)).Run(ctx, in, out)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(runErr)
}

// Status returns the message of the most recent failed operation, or an
// empty string if the last operation succeeded.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Dirty reports whether the graph differs from what was last saved or
// loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return digest(s.store) != s.savedDigest
}

// Path returns the document path of the session, if any.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Entry returns the entry node name.
func (s *Session) Entry() string {
	return s.entry
}

// digest fingerprints the canonical encoding of store.
func digest(store *graph.Store) uint64 {
	var buf bytes.Buffer
	if err := (document.JSONCodec{}).Encode(&buf, document.Serialize(store)); err != nil {
		return 0
	}
	return xxhash.Sum64(buf.Bytes())
}

func view(n *graph.Node) NodeView {
	return NodeView{
		ID:          n.ID().String(),
		Name:        n.Name(),
		Description: n.Description,
		X:           n.Position.X,
		Y:           n.Position.Y,
		Connections: n.Connections(),
	}
}
