package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cyoaflow/internal/graph"
)

var (
	// ErrMalformedDocument wraps every decode failure.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrUnsupportedFormat is returned for file extensions without a codec.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Document is the persisted form of a graph: one record per node.
type Document []Record

// Record is the persisted form of a single node.
type Record struct {
	X           float64            `json:"x" yaml:"x"`
	Y           float64            `json:"y" yaml:"y"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Connections []ConnectionRecord `json:"connections" yaml:"connections"`
}

// ConnectionRecord is persisted as a two-element [target, label] array.
type ConnectionRecord struct {
	Target string
	Label  string
}

// MarshalJSON implements json.Marshaler.
func (c ConnectionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Target, c.Label})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ConnectionRecord) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	return c.fromPair(pair)
}

// MarshalYAML implements yaml.Marshaler.
func (c ConnectionRecord) MarshalYAML() (any, error) {
	return []string{c.Target, c.Label}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ConnectionRecord) UnmarshalYAML(value *yaml.Node) error {
	var pair []string
	if err := value.Decode(&pair); err != nil {
		return err
	}
	return c.fromPair(pair)
}

func (c *ConnectionRecord) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("connection must be a [target, label] pair, got %d elements", len(pair))
	}
	c.Target, c.Label = pair[0], pair[1]
	return nil
}

// Serialize produces one record per node in store order, with connections
// in their stored order.
func Serialize(store *graph.Store) Document {
	nodes := store.Nodes()
	doc := make(Document, 0, len(nodes))
	for _, n := range nodes {
		conns := n.Connections()
		rec := Record{
			X:           n.Position.X,
			Y:           n.Position.Y,
			Name:        n.Name(),
			Description: n.Description,
			Connections: make([]ConnectionRecord, 0, len(conns)),
		}
		for _, c := range conns {
			rec.Connections = append(rec.Connections, ConnectionRecord{Target: c.Target, Label: c.Label})
		}
		doc = append(doc, rec)
	}
	return doc
}

// Deserialize rebuilds a store from doc. Connection targets are not
// checked. Two records with the same name make the document unusable and
// are reported as graph.ErrDuplicateName.
func Deserialize(doc Document) (*graph.Store, error) {
	store := graph.NewStore()
	for i, rec := range doc {
		conns := make([]graph.Connection, 0, len(rec.Connections))
		for _, c := range rec.Connections {
			conns = append(conns, graph.Connection{Target: c.Target, Label: c.Label})
		}
		pos := graph.Position{X: rec.X, Y: rec.Y}
		if _, err := store.Restore(rec.Name, rec.Description, pos, conns); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return store, nil
}
