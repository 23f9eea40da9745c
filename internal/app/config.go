package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Commands lists every command the app understands, in help order.
var Commands = []string{"play", "export", "convert", "check", "serve", "watch", "new"}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command      string `validate:"required,oneof=play export convert check serve watch new"`
	DocumentPath string `validate:"required"`
	OutputPath   string `validate:"required_if=Command convert"`

	Entry     string `validate:"required"`
	Title     string
	Addr      string `validate:"omitempty,hostname_port"`
	StepLimit int    `validate:"gte=0"`

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// NewConfig validates cfg and fills in derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return nil, fmt.Errorf("invalid configuration: %s", describe(validationErrs))
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.OutputPath == "" && (cfg.Command == "export" || cfg.Command == "watch") {
		cfg.OutputPath = BundlePath(cfg.DocumentPath)
	}
	return &cfg, nil
}

// BundlePath is the default export destination for a document: the same
// path with a .go extension.
func BundlePath(documentPath string) string {
	return strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + ".go"
}

func describe(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
