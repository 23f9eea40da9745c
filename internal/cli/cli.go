package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"

	"github.com/specialistvlad/cyoaflow/internal/app"
	"github.com/specialistvlad/cyoaflow/internal/traversal"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usageText = `
cyoaflow - build, play and export choose-your-own-adventure stories.

Usage:
  cyoaflow <command> [options] DOCUMENT

Commands:
  play     Play the story in this terminal.
  export   Write a standalone Go program that plays the story.
  convert  Rewrite the document in another format (-o decides which).
  check    Report a missing entry node and connections to unknown nodes.
           DOCUMENT may be a directory of documents.
  serve    Serve the editor API for the document.
  watch    Re-export the story every time the document changes.
  new      Create a document holding a single entry node.

Arguments:
  DOCUMENT
    Path to a .json, .yaml, .yml or .hcl story document.

Options:
`

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Defaults for some options come from CYOAFLOW_* environment variables,
// which may be set in a .env file.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	_ = godotenv.Load()

	flagSet := flag.NewFlagSet("cyoaflow", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageText)
		flagSet.PrintDefaults()
	}

	entryFlag := flagSet.String("entry", getEnvWithDefault("CYOAFLOW_ENTRY", traversal.DefaultEntry), "Name of the node a playthrough starts at.")
	outputFlag := flagSet.String("o", "", "Output path for export, convert and watch. Defaults to DOCUMENT with a .go extension for export and watch.")
	titleFlag := flagSet.String("title", "", "Title written at the top of an exported program.")
	addrFlag := flagSet.String("addr", getEnvWithDefault("CYOAFLOW_ADDR", ":8080"), "Listen address for serve.")
	stepLimitFlag := flagSet.Int("step-limit", 0, "Stop play after this many choices. 0 is unbounded.")
	logFormatFlag := flagSet.String("log-format", getEnvWithDefault("CYOAFLOW_LOG_FORMAT", "text"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", getEnvWithDefault("CYOAFLOW_LOG_LEVEL", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if err := flagSet.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, true, nil
			}
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	command := args[0]
	if !slices.Contains(app.Commands, command) {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q: must be one of %s", command, strings.Join(app.Commands, ", "))}
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "command", command)

	if flagSet.NArg() == 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s: missing DOCUMENT argument", command)}
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s: unexpected arguments after DOCUMENT: %s", command, strings.Join(flagSet.Args()[1:], " "))}
	}

	config, err := app.NewConfig(app.Config{
		Command:      command,
		DocumentPath: flagSet.Arg(0),
		OutputPath:   *outputFlag,
		Entry:        *entryFlag,
		Title:        *titleFlag,
		Addr:         *addrFlag,
		StepLimit:    *stepLimitFlag,
		LogFormat:    strings.ToLower(*logFormatFlag),
		LogLevel:     strings.ToLower(*logLevelFlag),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func getEnvWithDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// ExitCode returns the process status for err: the code carried by an
// ExitError, 1 for any other error and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
