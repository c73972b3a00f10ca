package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/yamlstack/internal/app"
	"github.com/vk/yamlstack/internal/config"
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

// Options is the parsed command line.
type Options struct {
	ProgramPath string
	// Mode is "eval" or "convert".
	Mode string

	Settings app.Settings
}

// Parse processes command-line arguments. It returns the parsed options,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	flagSet := flag.NewFlagSet("yamlstack", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
yamlstack - evaluate declarative YAML programs or convert them to IR.

Usage:
  yamlstack [options] PROGRAM_PATH

Arguments:
  PROGRAM_PATH
    Path to the program document (.yaml).

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := config.Default()

	modeFlag := flagSet.String("mode", "eval", "Operation mode. Options: 'eval' or 'convert'.")
	programFlag := flagSet.String("program", "", "Path to the program document.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", defaults.Workers, "Number of concurrent workers for the scheduler.")
	strictFlag := flagSet.Bool("strict", defaults.Strict, "Treat schema mismatches and unsupported constructs as errors.")
	applyFlag := flagSet.Bool("apply", false, "Register resources with the provider instead of previewing.")
	maxNodesFlag := flagSet.Int("max-expansion-nodes", defaults.MaxExpansionNodes, "Ceiling on the flattened document node count.")
	maxExpDepthFlag := flagSet.Int("max-expansion-depth", defaults.MaxExpansionDepth, "Ceiling on the flattened document depth.")
	maxExprDepthFlag := flagSet.Int("max-expr-depth", defaults.MaxExprDepth, "Ceiling on expression nesting depth.")
	projectFlag := flagSet.String("project", defaults.Project, "Project name exposed to the program.")
	stackFlag := flagSet.String("stack", defaults.Stack, "Stack name exposed to the program.")
	orgFlag := flagSet.String("organization", defaults.Organization, "Organization name exposed to the program.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *programFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	mode := strings.ToLower(*modeFlag)
	if mode != "eval" && mode != "convert" {
		return nil, false, &ExitError{Code: 2, Message: "invalid mode: must be 'eval' or 'convert'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *workersFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must be at least 1"}
	}

	cfg := defaults
	cfg.Workers = *workersFlag
	cfg.Strict = *strictFlag
	cfg.DryRun = !*applyFlag
	cfg.MaxExpansionNodes = *maxNodesFlag
	cfg.MaxExpansionDepth = *maxExpDepthFlag
	cfg.MaxExprDepth = *maxExprDepthFlag
	cfg.Project = *projectFlag
	cfg.Stack = *stackFlag
	cfg.Organization = *orgFlag

	return &Options{
		ProgramPath: path,
		Mode:        mode,
		Settings: app.Settings{
			LogFormat: logFormat,
			LogLevel:  logLevel,
			Config:    cfg,
		},
	}, false, nil
}
