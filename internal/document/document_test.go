package document

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cyoaflow/internal/graph"
)

// buildStore creates a small story with a duplicate label, a self loop and
// a dangling edge.
func buildStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	entry, err := s.AddNode("Entry", "You stand at a fork.", 100, 50)
	require.NoError(t, err)
	left, err := s.AddNode("Left", "A quiet \"garden\".\nBirds sing.", 40.5, 200)
	require.NoError(t, err)
	_, err = s.AddNode("Right", "", -3, 0)
	require.NoError(t, err)

	require.NoError(t, s.AddConnection(entry, "Left", "left"))
	require.NoError(t, s.AddConnection(entry, "Right", "right"))
	require.NoError(t, s.AddConnection(entry, "Left", "right"))
	require.NoError(t, s.AddConnection(left, "Left", "wait"))
	require.NoError(t, s.AddConnection(left, "Right", "leave ${now}"))

	right, _ := s.FindByName("Right")
	require.NoError(t, s.AddConnection(right, "Entry", "back"))
	gone, err := s.AddNode("Gone", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.AddConnection(right, "Gone", "vanish"))
	require.NoError(t, s.RemoveNode(gone))
	return s
}

type nodeView struct {
	Name        string
	Description string
	Position    graph.Position
	Connections []graph.Connection
}

func viewOf(s *graph.Store) []nodeView {
	var out []nodeView
	for _, n := range s.Nodes() {
		out = append(out, nodeView{
			Name:        n.Name(),
			Description: n.Description,
			Position:    n.Position,
			Connections: n.Connections(),
		})
	}
	return out
}

func TestSerialize(t *testing.T) {
	doc := Serialize(buildStore(t))

	require.Len(t, doc, 3)
	assert.Equal(t, Record{
		X:           100,
		Y:           50,
		Name:        "Entry",
		Description: "You stand at a fork.",
		Connections: []ConnectionRecord{
			{Target: "Left", Label: "left"},
			{Target: "Right", Label: "right"},
			{Target: "Left", Label: "right"},
		},
	}, doc[0])
	assert.Equal(t, ConnectionRecord{Target: "Gone", Label: "vanish"}, doc[2].Connections[1])
}

func TestRoundTrip_Store(t *testing.T) {
	original := buildStore(t)

	restored, err := Deserialize(Serialize(original))
	require.NoError(t, err)

	if diff := cmp.Diff(viewOf(original), viewOf(restored), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_Codecs(t *testing.T) {
	codecs := map[string]Codec{
		"json":        JSONCodec{},
		"json indent": JSONCodec{Indent: "  "},
		"yaml":        YAMLCodec{},
		"hcl":         HCLCodec{},
	}
	original := buildStore(t)

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, codec.Encode(&buf, Serialize(original)))

			doc, err := codec.Decode(&buf)
			require.NoError(t, err)
			restored, err := Deserialize(doc)
			require.NoError(t, err)

			if diff := cmp.Diff(viewOf(original), viewOf(restored), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONCodec_WireFormat(t *testing.T) {
	s := graph.NewStore()
	entry, _ := s.AddNode("Entry", "Start", 1, 2)
	_, _ = s.AddNode("A", "End", 3, 4)
	require.NoError(t, s.AddConnection(entry, "A", "go"))

	var buf bytes.Buffer
	require.NoError(t, JSONCodec{}.Encode(&buf, Serialize(s)))

	assert.JSONEq(t, `[
		{"x": 1, "y": 2, "name": "Entry", "description": "Start", "connections": [["A", "go"]]},
		{"x": 3, "y": 4, "name": "A", "description": "End", "connections": []}
	]`, buf.String())
}

func TestJSONCodec_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONCodec{}.Encode(&buf, Serialize(graph.NewStore())))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONCodec_Malformed(t *testing.T) {
	testCases := map[string]string{
		"not json":          `{{`,
		"object not list":   `{"name": "Entry"}`,
		"short connection":  `[{"name": "Entry", "connections": [["A"]]}]`,
		"long connection":   `[{"name": "Entry", "connections": [["A", "b", "c"]]}]`,
		"non-string target": `[{"name": "Entry", "connections": [[1, "b"]]}]`,
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := JSONCodec{}.Decode(strings.NewReader(input))
			require.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestDeserialize_DanglingTargetsLoad(t *testing.T) {
	doc, err := JSONCodec{}.Decode(strings.NewReader(
		`[{"x": 0, "y": 0, "name": "Entry", "description": "d", "connections": [["Nowhere", "jump"]]}]`))
	require.NoError(t, err)

	s, err := Deserialize(doc)
	require.NoError(t, err)

	entry, ok := s.FindByName("Entry")
	require.True(t, ok)
	assert.Equal(t, []graph.Connection{{Target: "Nowhere", Label: "jump"}}, entry.Connections())
}

func TestDeserialize_DuplicateNames(t *testing.T) {
	_, err := Deserialize(Document{{Name: "Entry"}, {Name: "Entry"}})
	require.ErrorIs(t, err, graph.ErrDuplicateName)
}

func TestHCLCodec_Decode(t *testing.T) {
	src := `
node "Entry" {
  x           = 10
  y           = 20
  description = "A fork in the road."

  connection "A" {
    label = "left"
  }
  connection "B" {
    label = "right"
  }
}

node "A" {
  description = "Left path."
}
`
	doc, err := HCLCodec{}.Decode(strings.NewReader(src))
	require.NoError(t, err)

	want := Document{
		{X: 10, Y: 20, Name: "Entry", Description: "A fork in the road.", Connections: []ConnectionRecord{
			{Target: "A", Label: "left"},
			{Target: "B", Label: "right"},
		}},
		{Name: "A", Description: "Left path.", Connections: []ConnectionRecord{}},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("decoded document mismatch (-want +got):\n%s", diff)
	}
}

func TestHCLCodec_Malformed(t *testing.T) {
	testCases := map[string]string{
		"syntax error":    `node "Entry" {`,
		"missing label":   `node { description = "x" }`,
		"connection body": `node "Entry" { connection "A" {} }`,
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := HCLCodec{}.Decode(strings.NewReader(input))
			require.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestYAMLCodec_EmptyInput(t *testing.T) {
	doc, err := YAMLCodec{}.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestCodecFor(t *testing.T) {
	testCases := []struct {
		path     string
		expected Codec
	}{
		{path: "story.json", expected: JSONCodec{Indent: "  "}},
		{path: "story.JSON", expected: JSONCodec{Indent: "  "}},
		{path: "dir/story.yaml", expected: YAMLCodec{}},
		{path: "story.yml", expected: YAMLCodec{}},
		{path: "story.hcl", expected: HCLCodec{}},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			codec, err := CodecFor(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, codec)
		})
	}

	_, err := CodecFor("story.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	original := buildStore(t)

	for _, ext := range Extensions() {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "story"+ext)

			require.NoError(t, Save(ctx, path, original))
			restored, err := Load(ctx, path)
			require.NoError(t, err)

			if diff := cmp.Diff(viewOf(original), viewOf(restored), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("save/load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Load(ctx, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[{"), 0644))
	_, err = Load(ctx, bad)
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = Load(ctx, filepath.Join(dir, "story.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	infinite := filepath.Join(dir, "infinite.yaml")
	require.NoError(t, os.WriteFile(infinite, []byte("- name: Entry\n  x: .inf\n  y: 0\n  description: ''\n  connections: []\n"), 0644))
	_, err = Load(ctx, infinite)
	assert.ErrorIs(t, err, graph.ErrInvalidPosition)
}
