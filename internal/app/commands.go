package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/document"
	"github.com/specialistvlad/cyoaflow/internal/export"
	"github.com/specialistvlad/cyoaflow/internal/fsutil"
	"github.com/specialistvlad/cyoaflow/internal/graph"
	"github.com/specialistvlad/cyoaflow/internal/server"
	"github.com/specialistvlad/cyoaflow/internal/session"
	"github.com/specialistvlad/cyoaflow/internal/traversal"
	"github.com/specialistvlad/cyoaflow/internal/watch"
)

var (
	// ErrCheckFailed is returned by check when the document has problems
	// that would stop a playthrough.
	ErrCheckFailed = errors.New("document check failed")
	// ErrDocumentExists is returned by new when the path is already taken.
	ErrDocumentExists = errors.New("document already exists")
)

func (a *App) exportOptions() []export.Option {
	opts := []export.Option{export.WithEntry(a.config.Entry)}
	if a.config.Title != "" {
		opts = append(opts, export.WithTitle(a.config.Title))
	}
	return opts
}

// play runs the story in place against the app's input and output.
func (a *App) play(ctx context.Context) error {
	store, err := document.Load(ctx, a.config.DocumentPath)
	if err != nil {
		return err
	}
	engine := traversal.New(store,
		traversal.WithEntry(a.config.Entry),
		traversal.WithStepLimit(a.config.StepLimit),
	)
	if err := engine.Run(ctx, a.in, a.outW); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Playthrough finished.", "steps", engine.Steps())
	return nil
}

func (a *App) export(ctx context.Context) error {
	store, err := document.Load(ctx, a.config.DocumentPath)
	if err != nil {
		return err
	}
	if err := export.ExportToPath(ctx, a.config.OutputPath, store, a.exportOptions()...); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Story exported.", "output", a.config.OutputPath, "nodes", store.Len())
	return nil
}

// convert rewrites the document in the format implied by the output path.
func (a *App) convert(ctx context.Context) error {
	store, err := document.Load(ctx, a.config.DocumentPath)
	if err != nil {
		return err
	}
	if err := document.Save(ctx, a.config.OutputPath, store); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Document converted.", "from", a.config.DocumentPath, "to", a.config.OutputPath)
	return nil
}

// check reports problems a playthrough would hit: a missing entry node and
// connections to nodes that do not exist. DocumentPath may be a directory,
// in which case every document under it is checked.
func (a *App) check(ctx context.Context) error {
	paths, err := fsutil.FindFilesByExtension(a.config.DocumentPath, document.Extensions()...)
	if err != nil {
		return fmt.Errorf("failed to find documents: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents found at %s", a.config.DocumentPath)
	}
	ctxlog.FromContext(ctx).Debug("Checking documents.", "count", len(paths))

	problems := 0
	for _, path := range paths {
		problems += a.checkDocument(ctx, path)
	}
	if problems > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrCheckFailed, problems)
	}
	fmt.Fprintln(a.outW, "ok")
	return nil
}

// checkDocument writes a report for one document and returns how many
// problems it found.
func (a *App) checkDocument(ctx context.Context, path string) int {
	store, err := document.Load(ctx, path)
	if err != nil {
		fmt.Fprintf(a.outW, "%s: %v\n", path, err)
		return 1
	}

	connections := 0
	for _, n := range store.Nodes() {
		connections += len(n.Connections())
	}
	fmt.Fprintf(a.outW, "%s: %d nodes, %d connections\n", path, store.Len(), connections)

	problems := 0
	if _, ok := store.FindByName(a.config.Entry); !ok {
		fmt.Fprintf(a.outW, "  missing entry node %q\n", a.config.Entry)
		problems++
	}

	dangling := store.DanglingConnections()
	sources := make([]string, 0, len(dangling))
	for name := range dangling {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	for _, name := range sources {
		for _, c := range dangling[name] {
			fmt.Fprintf(a.outW, "  %q -> %q (%s): unknown target\n", name, c.Target, c.Label)
			problems++
		}
	}
	return problems
}

// serve starts the editor API over the document, creating it on first save
// if it does not exist yet.
func (a *App) serve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	opts := []session.Option{session.WithEntry(a.config.Entry), session.WithPath(a.config.DocumentPath)}

	var sess *session.Session
	if _, err := os.Stat(a.config.DocumentPath); errors.Is(err, fs.ErrNotExist) {
		logger.Info("Document does not exist yet, starting empty.", "path", a.config.DocumentPath)
		sess = session.New(opts...)
	} else {
		sess, err = session.Open(ctx, a.config.DocumentPath, opts...)
		if err != nil {
			return err
		}
	}

	return server.New(sess).ListenAndServe(ctx, a.config.Addr)
}

func (a *App) watch(ctx context.Context) error {
	w, err := watch.New(a.config.DocumentPath, a.config.OutputPath,
		watch.WithExportOptions(a.exportOptions()...),
	)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// create writes a starter document holding a single entry node.
func (a *App) create(ctx context.Context) error {
	if _, err := os.Stat(a.config.DocumentPath); err == nil {
		return fmt.Errorf("%w: %s", ErrDocumentExists, a.config.DocumentPath)
	}

	sess := session.New(session.WithEntry(a.config.Entry))
	if _, err := sess.CreateNode(a.config.Entry, 0, 0); err != nil {
		return err
	}
	if err := sess.SetDescription(a.config.Entry, graph.DefaultDescription); err != nil {
		return err
	}
	if err := sess.Save(ctx, a.config.DocumentPath); err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "created %s\n", a.config.DocumentPath)
	return nil
}
