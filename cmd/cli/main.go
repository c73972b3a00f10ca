package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/yamlstack/internal/app"
	"github.com/vk/yamlstack/internal/cli"
	"github.com/vk/yamlstack/internal/eval"
)

// main is the entrypoint for the yamlstack application.
func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and
// error handling.
func run(outW, errW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	program := app.New(errW, &opts.Settings)
	ctx := context.Background()

	switch opts.Mode {
	case "convert":
		out, diags, err := program.Convert(ctx, opts.ProgramPath)
		writeDiagnostics(errW, diags)
		if err != nil {
			return err
		}
		if diags.HasErrors() {
			return &cli.ExitError{Code: 1, Message: "conversion failed"}
		}
		fmt.Fprint(outW, out)
		return nil

	default:
		result, diags, err := program.Evaluate(ctx, opts.ProgramPath)
		writeDiagnostics(errW, diags)
		if err != nil {
			return err
		}
		if diags.HasErrors() {
			return &cli.ExitError{Code: 1, Message: "evaluation failed"}
		}
		printResult(outW, result)
		if len(result.Failed) > 0 {
			return &cli.ExitError{Code: 1, Message: "one or more nodes failed"}
		}
		return nil
	}
}

func printResult(w io.Writer, result *eval.Result) {
	for _, intent := range result.Intents {
		verb := "register"
		if intent.ReadID != "" {
			verb = "read"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", verb, intent.Name, intent.Token)
	}
	for _, out := range result.Outputs {
		fmt.Fprintf(w, "output %s = %s\n", out.Key, out.Value.GoString())
	}

	failed := make([]string, 0, len(result.Failed))
	for name := range result.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		fmt.Fprintf(w, "failed %s: %v\n", name, result.Failed[name])
	}

	skipped := make([]string, 0, len(result.Skipped))
	for name := range result.Skipped {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	for _, name := range skipped {
		fmt.Fprintf(w, "skipped %s (upstream %s)\n", name, result.Skipped[name])
	}
}

func writeDiagnostics(w io.Writer, diags hcl.Diagnostics) {
	if len(diags) == 0 {
		return
	}
	writer := hcl.NewDiagnosticTextWriter(w, nil, 100, false)
	_ = writer.WriteDiagnostics(diags)
}
