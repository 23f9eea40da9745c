package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	in     io.Reader
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp is the constructor for the main application. Player-facing text
// and reports go to outW and player input is read from in; logs go to logW
// so they never interleave with a story being played.
func NewApp(in io.Reader, outW, logW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	return &App{
		in:     in,
		outW:   outW,
		logger: logger,
		config: config,
	}
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command, "document", a.config.DocumentPath)

	var err error
	switch a.config.Command {
	case "play":
		err = a.play(ctx)
	case "export":
		err = a.export(ctx)
	case "convert":
		err = a.convert(ctx)
	case "check":
		err = a.check(ctx)
	case "serve":
		err = a.serve(ctx)
	case "watch":
		err = a.watch(ctx)
	case "new":
		err = a.create(ctx)
	default:
		err = fmt.Errorf("unknown command %q", a.config.Command)
	}

	a.logger.Debug("App.Run method finished.", "error", err)
	return err
}
