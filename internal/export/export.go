// Package export turns a narrative graph into a standalone Go program.
//
// The generated bundle is a single package main source file that imports
// only the standard library. It holds the graph as a typed Go composite
// literal next to a copy of the traversal loop, so `go run story.go` (or
// `go build`) is all a player needs.
package export

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"go/ast"
	"go/format"
	"go/printer"
	"go/token"
	"io"
	"strconv"
	"strings"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/document"
	"github.com/specialistvlad/cyoaflow/internal/fsutil"
	"github.com/specialistvlad/cyoaflow/internal/graph"
	"github.com/specialistvlad/cyoaflow/internal/traversal"
)

//go:embed runtime.go.tmpl
var runtimeSource string

// generatedHeader marks the bundle as generated code for go tooling.
const generatedHeader = "// Code generated by cyoaflow export. DO NOT EDIT.\n"

// Option configures an export.
type Option func(*options)

type options struct {
	entry string
	title string
}

// WithEntry sets the node name the bundle starts from.
func WithEntry(name string) Option {
	return func(o *options) {
		o.entry = name
	}
}

// WithTitle adds a title line to the bundle's header comment.
func WithTitle(title string) Option {
	return func(o *options) {
		o.title = title
	}
}

// Export renders store as a gofmt-formatted Go program. The entry node is
// not required to exist; a bundle without it reports the missing entry node
// when run.
func Export(store *graph.Store, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	data, err := renderData(document.Serialize(store), o.entry)
	if err != nil {
		return nil, err
	}

	var src bytes.Buffer
	src.WriteString(generatedHeader)
	if o.title != "" {
		for _, line := range strings.Split(o.title, "\n") {
			src.WriteString("// " + line + "\n")
		}
	}
	src.WriteString("\n")
	src.WriteString(runtimeSource)
	src.WriteString("\n")
	src.Write(data)

	formatted, err := format.Source(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated bundle: %w", err)
	}
	return formatted, nil
}

// ExportToPath writes the bundle for store to path atomically.
func ExportToPath(ctx context.Context, path string, store *graph.Store, opts ...Option) error {
	logger := ctxlog.FromContext(ctx)

	src, err := Export(store, opts...)
	if err != nil {
		return err
	}
	if entry := newOptions(opts).entry; !hasNode(store, entry) {
		logger.Warn("Exported story has no entry node; the bundle will report it when run.", "entry", entry)
	}

	err = fsutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, err := w.Write(src)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	logger.Info("Bundle exported.", "path", path, "nodes", store.Len(), "bytes", len(src))
	return nil
}

func newOptions(opts []Option) options {
	o := options{entry: traversal.DefaultEntry}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func hasNode(store *graph.Store, name string) bool {
	_, ok := store.FindByName(name)
	return ok
}

// renderData prints the entryName constant and the story variable, one
// node literal per line.
func renderData(doc document.Document, entry string) ([]byte, error) {
	var buf bytes.Buffer
	fset := token.NewFileSet()

	buf.WriteString("const entryName = ")
	if err := printer.Fprint(&buf, fset, stringLit(entry)); err != nil {
		return nil, fmt.Errorf("failed to print entry name: %w", err)
	}
	buf.WriteString("\n\nvar story = []node{\n")
	for _, rec := range doc {
		if err := printer.Fprint(&buf, fset, nodeLit(rec)); err != nil {
			return nil, fmt.Errorf("failed to print node %q: %w", rec.Name, err)
		}
		buf.WriteString(",\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func nodeLit(rec document.Record) ast.Expr {
	elts := []ast.Expr{
		field("Name", stringLit(rec.Name)),
		field("Description", stringLit(rec.Description)),
		field("X", floatLit(rec.X)),
		field("Y", floatLit(rec.Y)),
	}
	if len(rec.Connections) > 0 {
		conns := make([]ast.Expr, 0, len(rec.Connections))
		for _, c := range rec.Connections {
			conns = append(conns, &ast.CompositeLit{Elts: []ast.Expr{
				field("Target", stringLit(c.Target)),
				field("Label", stringLit(c.Label)),
			}})
		}
		elts = append(elts, field("Connections", &ast.CompositeLit{
			Type: &ast.ArrayType{Elt: ast.NewIdent("connection")},
			Elts: conns,
		}))
	}
	return &ast.CompositeLit{Elts: elts}
}

func field(name string, value ast.Expr) ast.Expr {
	return &ast.KeyValueExpr{Key: ast.NewIdent(name), Value: value}
}

func stringLit(s string) ast.Expr {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func floatLit(f float64) ast.Expr {
	if f < 0 {
		return &ast.UnaryExpr{Op: token.SUB, X: floatLit(-f)}
	}
	return &ast.BasicLit{Kind: token.FLOAT, Value: strconv.FormatFloat(f, 'g', -1, 64)}
}
