package export

import (
	"bytes"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cyoaflow/internal/graph"
)

func forkStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	entry, err := s.AddNode("Entry", "You stand at a fork.", 10, -20.5)
	require.NoError(t, err)
	_, err = s.AddNode("A", "You went \"left\".\nThe end.", 0, 0)
	require.NoError(t, err)
	_, err = s.AddNode("B", "You went right. `ok`", 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.AddConnection(entry, "A", "left"))
	require.NoError(t, s.AddConnection(entry, "B", "right"))
	return s
}

// parseBundle checks the bundle is a valid package main file and returns
// its declarations by name.
func parseBundle(t *testing.T, src []byte) (*ast.File, map[string]bool) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "bundle.go", src, parser.ParseComments)
	require.NoError(t, err, "generated bundle must parse:\n%s", src)
	require.Equal(t, "main", file.Name.Name)

	names := make(map[string]bool)
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			names[d.Name.Name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names[n.Name] = true
					}
				case *ast.TypeSpec:
					names[s.Name.Name] = true
				}
			}
		}
	}
	return file, names
}

func TestExport_ProducesStandaloneProgram(t *testing.T) {
	src, err := Export(forkStore(t))
	require.NoError(t, err)

	file, names := parseBundle(t, src)

	for _, name := range []string{"main", "play", "story", "entryName", "node", "connection"} {
		assert.True(t, names[name], "bundle should declare %s", name)
	}
	for _, imp := range file.Imports {
		assert.NotContains(t, imp.Path.Value, ".", "bundle must only import the standard library, got %s", imp.Path.Value)
	}
	assert.True(t, strings.HasPrefix(string(src), generatedHeader))
}

func TestExport_EmbedsDataLiterally(t *testing.T) {
	src, err := Export(forkStore(t))
	require.NoError(t, err)
	text := string(src)

	assert.Contains(t, text, `const entryName = "Entry"`)
	assert.Contains(t, text, `Name: "Entry"`)
	assert.Contains(t, text, `Description: "You went \"left\".\nThe end."`)
	assert.Contains(t, text, "Description: \"You went right. `ok`\"")
	assert.Contains(t, text, `X: 10`)
	assert.Contains(t, text, `Y: -20.5`)
	assert.Contains(t, text, `{Target: "A", Label: "left"}`)
	assert.Contains(t, text, `{Target: "B", Label: "right"}`)
}

func TestExport_Options(t *testing.T) {
	src, err := Export(forkStore(t), WithEntry("A"), WithTitle("The Fork\nby someone"))
	require.NoError(t, err)
	text := string(src)

	assert.Contains(t, text, `const entryName = "A"`)
	assert.Contains(t, text, "// The Fork\n// by someone\n")
	parseBundle(t, src)
}

func TestExport_WithoutEntryStillSucceeds(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.AddNode("Start", "Nowhere to begin.", 0, 0)

	src, err := Export(s)
	require.NoError(t, err)
	parseBundle(t, src)
}

func TestExport_EmptyStore(t *testing.T) {
	src, err := Export(graph.NewStore())
	require.NoError(t, err)

	_, names := parseBundle(t, src)
	assert.True(t, names["story"])
}

func TestExportToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.go")

	require.NoError(t, ExportToPath(context.Background(), path, forkStore(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parseBundle(t, data)
}

// runBundle executes the generated program with the go tool. It is skipped
// when the toolchain is unavailable or in -short mode.
func runBundle(t *testing.T, src []byte, stdin string) (string, string, error) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping bundle execution in short mode")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not available")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "story.go")
	require.NoError(t, os.WriteFile(path, src, 0644))

	cmd := exec.Command(goBin, "run", path)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=", "GO111MODULE=on")
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestBundle_RunsStandalone(t *testing.T) {
	src, err := Export(forkStore(t))
	require.NoError(t, err)

	stdout, stderr, err := runBundle(t, src, "up\nleft\n")
	require.NoError(t, err, stderr)

	assert.Equal(t, "You stand at a fork.\n=======\n"+
		"Choose one: left, right_ "+
		"unknown choice \"up\"\n"+
		"Choose one: left, right_ "+
		"You went \"left\".\nThe end.\n=======\n", stdout)
}

func TestBundle_ReportsMissingEntryNode(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.AddNode("Start", "Nowhere to begin.", 0, 0)
	src, err := Export(s)
	require.NoError(t, err)

	stdout, stderr, err := runBundle(t, src, "")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `missing entry node "Entry"`)
}

func TestBundle_DuplicateLabelFollowsLastConnection(t *testing.T) {
	s := graph.NewStore()
	entry, _ := s.AddNode("Entry", "Two doors, one sign.", 0, 0)
	_, _ = s.AddNode("A", "Room A.", 0, 0)
	_, _ = s.AddNode("B", "Room B.", 0, 0)
	require.NoError(t, s.AddConnection(entry, "A", "go"))
	require.NoError(t, s.AddConnection(entry, "B", "go"))
	src, err := Export(s)
	require.NoError(t, err)

	stdout, stderr, err := runBundle(t, src, "go\n")
	require.NoError(t, err, stderr)

	assert.Equal(t, "Two doors, one sign.\n=======\n"+
		"Choose one: go_ "+
		"Room B.\n=======\n", stdout)
}

func TestBundle_ReportsDanglingTargetWhenChosen(t *testing.T) {
	s := forkStore(t)
	a, _ := s.FindByName("A")
	require.NoError(t, s.RemoveNode(a))
	src, err := Export(s)
	require.NoError(t, err)

	stdout, stderr, err := runBundle(t, src, "left\n")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, stdout, "Choose one: left, right_ ")
	assert.Contains(t, stderr, `connection target does not exist: "A" from node "Entry"`)
}
