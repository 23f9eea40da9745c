package document

import (
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// hclFilename is reported in diagnostics for documents read from a stream.
const hclFilename = "document.hcl"

// hclRoot decodes the top level of an HCL document.
type hclRoot struct {
	Nodes  []*hclNode `hcl:"node,block"`
	Remain hcl.Body   `hcl:",remain"`
}

type hclNode struct {
	Name        string           `hcl:"name,label"`
	X           float64          `hcl:"x,optional"`
	Y           float64          `hcl:"y,optional"`
	Description string           `hcl:"description,optional"`
	Connections []*hclConnection `hcl:"connection,block"`
}

type hclConnection struct {
	Target string `hcl:"target,label"`
	Label  string `hcl:"label"`
}

// HCLCodec reads and writes the hand-authoring format. String values pass
// through cty, which normalizes them to Unicode NFC.
type HCLCodec struct{}

// Encode implements Codec.
func (HCLCodec) Encode(w io.Writer, doc Document) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for i, rec := range doc {
		if i > 0 {
			body.AppendNewline()
		}
		nodeBody := body.AppendNewBlock("node", []string{rec.Name}).Body()
		nodeBody.SetAttributeValue("x", cty.NumberFloatVal(rec.X))
		nodeBody.SetAttributeValue("y", cty.NumberFloatVal(rec.Y))
		nodeBody.SetAttributeValue("description", cty.StringVal(rec.Description))

		for _, c := range rec.Connections {
			nodeBody.AppendNewline()
			connBody := nodeBody.AppendNewBlock("connection", []string{c.Target}).Body()
			connBody.SetAttributeValue("label", cty.StringVal(c.Label))
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write HCL document: %w", err)
	}
	return nil
}

// Decode implements Codec.
func (HCLCodec) Decode(r io.Reader) (Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read HCL document: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, hclFilename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDocument, diags.Error())
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDocument, diags.Error())
	}

	doc := make(Document, 0, len(root.Nodes))
	for _, n := range root.Nodes {
		rec := Record{
			X:           n.X,
			Y:           n.Y,
			Name:        n.Name,
			Description: n.Description,
			Connections: make([]ConnectionRecord, 0, len(n.Connections)),
		}
		for _, c := range n.Connections {
			rec.Connections = append(rec.Connections, ConnectionRecord{Target: c.Target, Label: c.Label})
		}
		doc = append(doc, rec)
	}
	return doc, nil
}
