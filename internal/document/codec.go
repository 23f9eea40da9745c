package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec encodes and decodes documents in one concrete format.
type Codec interface {
	Encode(w io.Writer, doc Document) error
	Decode(r io.Reader) (Document, error)
}

// CodecFor picks a codec from the extension of path.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSONCodec{Indent: "  "}, nil
	case ".yaml", ".yml":
		return YAMLCodec{}, nil
	case ".hcl":
		return HCLCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Extensions lists every file extension CodecFor understands.
func Extensions() []string {
	return []string{".json", ".yaml", ".yml", ".hcl"}
}

// JSONCodec is the canonical encoding. An empty Indent writes compact JSON.
type JSONCodec struct {
	Indent string
}

// Encode implements Codec.
func (c JSONCodec) Encode(w io.Writer, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if c.Indent != "" {
		enc.SetIndent("", c.Indent)
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON document: %w", err)
	}
	return nil
}

// Decode implements Codec.
func (c JSONCodec) Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return doc, nil
}

// YAMLCodec writes the same record shape as JSON in YAML syntax.
type YAMLCodec struct{}

// Encode implements Codec.
func (YAMLCodec) Encode(w io.Writer, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML document: %w", err)
	}
	return enc.Close()
}

// Decode implements Codec. An empty stream decodes to an empty document.
func (YAMLCodec) Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return doc, nil
}
