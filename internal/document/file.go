package document

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/fsutil"
	"github.com/specialistvlad/cyoaflow/internal/graph"
)

// Read decodes the document at path with the codec matching its extension.
func Read(ctx context.Context, path string) (Document, error) {
	logger := ctxlog.FromContext(ctx)

	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc, err := codec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	logger.Debug("Document decoded.", "path", path, "records", len(doc))
	return doc, nil
}

// Load reads the document at path into a new store. Nothing is returned
// unless the whole document decoded, so callers can swap the result in
// without ever holding a partially loaded graph.
func Load(ctx context.Context, path string) (*graph.Store, error) {
	doc, err := Read(ctx, path)
	if err != nil {
		return nil, err
	}
	store, err := Deserialize(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if dangling := store.DanglingConnections(); len(dangling) > 0 {
		ctxlog.FromContext(ctx).Warn("Document contains connections to unknown nodes.", "path", path, "nodes", len(dangling))
	}
	return store, nil
}

// Write encodes doc to path atomically.
func Write(ctx context.Context, path string, doc Document) error {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}
	err = fsutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return codec.Encode(w, doc)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("Document written.", "path", path, "records", len(doc))
	return nil
}

// Save serializes store and writes it to path.
func Save(ctx context.Context, path string, store *graph.Store) error {
	return Write(ctx, path, Serialize(store))
}
