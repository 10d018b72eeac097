package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/healthlog/internal/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	Database string

	// IDGenerator allows overriding record ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator model.IDGenerator

	// Now allows overriding the clock used for new records (for testing).
	// If nil, defaults to time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the healthlog CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthlog",
		Short: "healthlog - personal health tracking",
		Long: `A local-first health log.

Define the fields you track (weight, blood pressure, mood, ...) and log
timestamped records against them. Everything is stored in a local SQLite
database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewFieldsCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stdout in the selected format.
func Execute(args []string, stdout, stderr io.Writer) int {
	return execute(&RootOptions{}, args, stdout, stderr)
}

func execute(opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	// Anything cobra rejects before a command runs is a usage error.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		err = WrapExitError(ExitCommandError, "invalid command", err)
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	_ = out.Error(errorCode(err), err.Error(), nil)

	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
