package traversal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/graph"
)

// DefaultEntry is the name of the node every traversal starts from.
const DefaultEntry = "Entry"

// Separator is written after every node description.
const Separator = "======="

var (
	// ErrMissingEntryNode is returned by Start when no node has the entry
	// name.
	ErrMissingEntryNode = errors.New("missing entry node")
	// ErrDanglingConnectionTarget is returned when a chosen connection
	// names a node that no longer exists.
	ErrDanglingConnectionTarget = errors.New("connection target does not exist")
	// ErrUnknownChoice is returned by Choose for a label the current node
	// does not offer. The engine stays where it was.
	ErrUnknownChoice = errors.New("unknown choice")
	// ErrInputClosed is returned by Run when input ends before a terminal
	// node is reached.
	ErrInputClosed = errors.New("input closed before the story ended")
	// ErrStepLimit is returned once the configured number of transitions
	// has been taken.
	ErrStepLimit = errors.New("step limit reached")
	// ErrNotStarted is returned by Choose before Start.
	ErrNotStarted = errors.New("traversal has not started")
)

// Graph is the read access the engine needs. *graph.Store satisfies it.
type Graph interface {
	FindByName(name string) (*graph.Node, bool)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEntry overrides the entry node name.
func WithEntry(name string) Option {
	return func(e *Engine) {
		e.entry = name
	}
}

// WithStepLimit bounds the number of transitions. Zero means unbounded.
func WithStepLimit(n int) Option {
	return func(e *Engine) {
		e.stepLimit = n
	}
}

// Engine walks a Graph one choice at a time.
type Engine struct {
	graph     Graph
	entry     string
	stepLimit int

	current *graph.Node
	steps   int
}

// New creates an engine over g. Call Start (or Run) before choosing.
func New(g Graph, opts ...Option) *Engine {
	e := &Engine{graph: g, entry: DefaultEntry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start positions the engine on the entry node.
func (e *Engine) Start() error {
	n, ok := e.graph.FindByName(e.entry)
	if !ok {
		return fmt.Errorf("%w %q", ErrMissingEntryNode, e.entry)
	}
	e.current = n
	e.steps = 0
	return nil
}

// Current returns the node the player is at, or nil before Start.
func (e *Engine) Current() *graph.Node {
	return e.current
}

// Steps returns the number of transitions taken since Start.
func (e *Engine) Steps() int {
	return e.steps
}

// Done reports whether the current node is terminal.
func (e *Engine) Done() bool {
	return e.current != nil && e.current.IsTerminal()
}

// Choices lists the distinct labels of the current node.
func (e *Engine) Choices() []string {
	if e.current == nil {
		return nil
	}
	_, labels := choiceMap(e.current.Connections())
	return labels
}

// Choose follows the connection labeled label. On any error the engine
// stays on the current node.
func (e *Engine) Choose(label string) error {
	if e.current == nil {
		return ErrNotStarted
	}
	if e.limitReached() {
		return fmt.Errorf("%w after %d steps", ErrStepLimit, e.steps)
	}

	targets, _ := choiceMap(e.current.Connections())
	target, ok := targets[label]
	if !ok {
		return fmt.Errorf("%w %q at node %q", ErrUnknownChoice, label, e.current.Name())
	}
	next, ok := e.graph.FindByName(target)
	if !ok {
		return fmt.Errorf("%w: %q chosen via %q from node %q", ErrDanglingConnectionTarget, target, label, e.current.Name())
	}

	e.current = next
	e.steps++
	return nil
}

// Run plays the story interactively: it writes each description, a
// separator and a prompt to out, and reads one choice per line from in.
// Unknown choices are reported to out and prompted again. Run returns nil
// when a terminal node has been shown.
func (e *Engine) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := ctxlog.FromContext(ctx)

	if err := e.Start(); err != nil {
		return err
	}
	logger.Debug("Traversal started.", "entry", e.entry)

	reader := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := e.current
		logger.Debug("Visiting node.", "node", node.Name(), "step", e.steps)
		fmt.Fprintf(out, "%s\n%s\n", node.Description, Separator)

		if e.Done() {
			logger.Debug("Traversal reached a terminal node.", "node", node.Name(), "steps", e.steps)
			return nil
		}

		if e.limitReached() {
			return fmt.Errorf("%w after %d steps", ErrStepLimit, e.steps)
		}
		if err := e.prompt(ctx, reader, out); err != nil {
			return err
		}
	}
}

func (e *Engine) limitReached() bool {
	return e.stepLimit > 0 && e.steps >= e.stepLimit
}

// prompt reads lines until one of them moves the engine forward.
func (e *Engine) prompt(ctx context.Context, reader *bufio.Reader, out io.Writer) error {
	for {
		fmt.Fprintf(out, "Choose one: %s_ ", strings.Join(e.Choices(), ", "))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return ErrInputClosed
			}
			return fmt.Errorf("failed to read choice: %w", err)
		}

		err = e.chooseLine(line)
		if errors.Is(err, ErrUnknownChoice) {
			ctxlog.FromContext(ctx).Debug("Rejected unknown choice.", "input", line, "node", e.current.Name())
			fmt.Fprintf(out, "unknown choice %q\n", strings.TrimSpace(line))
			continue
		}
		return err
	}
}

// chooseLine tries the line without its line ending first, then with
// surrounding whitespace removed.
func (e *Engine) chooseLine(line string) error {
	exact := strings.TrimRight(line, "\r\n")
	err := e.Choose(exact)
	if !errors.Is(err, ErrUnknownChoice) {
		return err
	}
	if trimmed := strings.TrimSpace(exact); trimmed != exact {
		return e.Choose(trimmed)
	}
	return err
}

// choiceMap builds the label to target mapping with last-write-wins on
// duplicate labels, plus the distinct labels in first-appearance order.
func choiceMap(conns []graph.Connection) (map[string]string, []string) {
	targets := make(map[string]string, len(conns))
	labels := make([]string, 0, len(conns))
	for _, c := range conns {
		if _, seen := targets[c.Label]; !seen {
			labels = append(labels, c.Label)
		}
		targets[c.Label] = c.Target
	}
	return targets, labels
}
