package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/yamlstack/internal/bind"
	"github.com/vk/yamlstack/internal/builder"
	"github.com/vk/yamlstack/internal/codegen"
	"github.com/vk/yamlstack/internal/config"
	"github.com/vk/yamlstack/internal/ctxlog"
	"github.com/vk/yamlstack/internal/eval"
	"github.com/vk/yamlstack/internal/schema"
	"github.com/vk/yamlstack/internal/syntax"
)

// Settings holds everything an App instance needs to run.
type Settings struct {
	LogFormat string
	LogLevel  string

	Config   config.Model
	Registry *schema.Registry
	Provider eval.Provider
}

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	logger   *slog.Logger
	cfg      config.Model
	registry *schema.Registry
	provider eval.Provider
}

// New is the constructor for the main application. A nil registry means
// schema checks are skipped; a nil provider gets the in-memory mock.
func New(logW io.Writer, settings *Settings) *App {
	logger := newLogger(settings.LogLevel, settings.LogFormat, logW)

	registry := settings.Registry
	if registry == nil {
		registry = schema.NewRegistry()
	}
	provider := settings.Provider
	if provider == nil {
		provider = eval.NewMockProvider()
	}

	return &App{
		logger:   logger,
		cfg:      settings.Config,
		registry: registry,
		provider: provider,
	}
}

// Context returns a context carrying the application logger.
func (a *App) Context(parent context.Context) context.Context {
	return ctxlog.WithLogger(parent, a.logger)
}

// bindFile runs the front half of the pipeline: load, build, bind. It
// stops at the first stage that produced error diagnostics.
func (a *App) bindFile(ctx context.Context, path string) (*bind.BoundProgram, hcl.Diagnostics, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading program: %w", err)
	}
	return a.bindSource(ctx, src, path)
}

func (a *App) bindSource(ctx context.Context, src []byte, filename string) (*bind.BoundProgram, hcl.Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)

	doc, diags := syntax.Load(src, filename, syntax.Limits{
		MaxNodes: a.cfg.MaxExpansionNodes,
		MaxDepth: a.cfg.MaxExpansionDepth,
	})
	if diags.HasErrors() {
		return nil, diags, nil
	}
	logger.Debug("document loaded", "file", filename)

	program, buildDiags := builder.Build(doc, a.cfg.MaxExprDepth)
	diags = append(diags, buildDiags...)
	if diags.HasErrors() {
		return nil, diags, nil
	}
	logger.Debug("program built",
		"config", len(program.Config),
		"variables", len(program.Variables),
		"resources", len(program.Resources),
		"outputs", len(program.Outputs))

	bound, bindDiags := bind.Bind(program, bind.Options{
		Registry: a.registry,
		Strict:   a.cfg.Strict,
	})
	diags = append(diags, bindDiags...)
	if diags.HasErrors() {
		return nil, diags, nil
	}
	logger.Debug("program bound", "symbols", len(bound.Symbols))

	return bound, diags, nil
}

// Evaluate runs the whole pipeline against the provider and returns the
// evaluation result. Diagnostics with errors mean evaluation never started.
func (a *App) Evaluate(ctx context.Context, path string) (*eval.Result, hcl.Diagnostics, error) {
	ctx = a.Context(ctx)
	bound, diags, err := a.bindFile(ctx, path)
	if err != nil || diags.HasErrors() {
		return nil, diags, err
	}

	evaluator := eval.New(bound, a.provider, a.cfg)
	result, evalDiags := evaluator.Run(ctx)
	diags = append(diags, evalDiags...)
	return result, diags, nil
}

// EvaluateSource is Evaluate for in-memory documents.
func (a *App) EvaluateSource(ctx context.Context, src []byte, filename string) (*eval.Result, hcl.Diagnostics, error) {
	ctx = a.Context(ctx)
	bound, diags, err := a.bindSource(ctx, src, filename)
	if err != nil || diags.HasErrors() {
		return nil, diags, err
	}

	evaluator := eval.New(bound, a.provider, a.cfg)
	result, evalDiags := evaluator.Run(ctx)
	diags = append(diags, evalDiags...)
	return result, diags, nil
}

// Convert runs the front half of the pipeline and renders the program as
// IR text.
func (a *App) Convert(ctx context.Context, path string) (string, hcl.Diagnostics, error) {
	ctx = a.Context(ctx)
	bound, diags, err := a.bindFile(ctx, path)
	if err != nil || diags.HasErrors() {
		return "", diags, err
	}

	out, convDiags := codegen.Convert(bound.Program, codegen.Options{Strict: a.cfg.Strict})
	diags = append(diags, convDiags...)
	if diags.HasErrors() {
		return "", diags, nil
	}
	return out, diags, nil
}

// ConvertSource is Convert for in-memory documents.
func (a *App) ConvertSource(ctx context.Context, src []byte, filename string) (string, hcl.Diagnostics, error) {
	ctx = a.Context(ctx)
	bound, diags, err := a.bindSource(ctx, src, filename)
	if err != nil || diags.HasErrors() {
		return "", diags, err
	}

	out, convDiags := codegen.Convert(bound.Program, codegen.Options{Strict: a.cfg.Strict})
	diags = append(diags, convDiags...)
	if diags.HasErrors() {
		return "", diags, nil
	}
	return out, diags, nil
}
