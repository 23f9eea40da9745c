// Package watch re-exports a story bundle whenever its document changes on
// disk, so an author editing the document by hand always has a runnable
// bundle next to it.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/document"
	"github.com/specialistvlad/cyoaflow/internal/export"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithExportOptions passes options through to every export.
func WithExportOptions(opts ...export.Option) Option {
	return func(w *Watcher) {
		w.exportOpts = append(w.exportOpts, opts...)
	}
}

// OnRebuild registers a callback invoked after every rebuild attempt with
// its result.
func OnRebuild(fn func(error)) Option {
	return func(w *Watcher) {
		w.onRebuild = fn
	}
}

// Watcher rebuilds one bundle from one document.
type Watcher struct {
	docPath    string
	outPath    string
	debounce   time.Duration
	exportOpts []export.Option
	onRebuild  func(error)
}

// New creates a watcher for docPath that writes its bundle to outPath.
func New(docPath, outPath string, opts ...Option) (*Watcher, error) {
	absDoc, err := filepath.Abs(docPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", docPath, err)
	}
	w := &Watcher{
		docPath:  absDoc,
		outPath:  outPath,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run builds the bundle once, then rebuilds it after every change to the
// document until ctx is canceled. A rebuild that fails is logged and the
// previous bundle is left in place.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("document", w.docPath, "output", w.outPath)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// Editors often replace a file by renaming over it, which drops a watch
	// on the file itself, so the directory is watched instead.
	if err := fsw.Add(filepath.Dir(w.docPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.docPath), err)
	}
	logger.Info("Watching document for changes.")

	w.rebuild(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping document watcher.")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.docPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("Document changed.", "operation", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error", "error", err)

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	err := w.export(ctx)
	if err != nil {
		logger.Error("Rebuild failed, keeping previous bundle.", "document", w.docPath, "error", err)
	} else {
		logger.Info("Bundle rebuilt.", "output", w.outPath)
	}
	if w.onRebuild != nil {
		w.onRebuild(err)
	}
}

func (w *Watcher) export(ctx context.Context) error {
	store, err := document.Load(ctx, w.docPath)
	if err != nil {
		return err
	}
	return export.ExportToPath(ctx, w.outPath, store, w.exportOpts...)
}
