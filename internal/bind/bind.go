// Package bind resolves symbols and checks a typed program against a
// schema registry. Binding never mutates the program; the result wraps it
// together with the symbol table and resolved configuration types.
package bind

import (
	"fmt"

	"github.com/agext/levenshtein"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/schema"
)

// AmbientName is the reserved root symbol providing project metadata
// (cwd, project, stack, organization). It is always resolvable and can
// never be declared.
const AmbientName = "pulumi"

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindConfig    SymbolKind = "config"
	KindVariable  SymbolKind = "variable"
	KindResource  SymbolKind = "resource"
	KindOutput    SymbolKind = "output"
	KindComponent SymbolKind = "component"
)

// Symbol is one named declaration. Exactly one of the declaration fields
// is set, matching Kind.
type Symbol struct {
	Name     string
	Kind     SymbolKind
	DefRange hcl.Range

	Config    *ast.ConfigDecl
	Variable  *ast.VariableDecl
	Resource  *ast.ResourceDecl
	Output    *ast.OutputDecl
	Component *ast.ComponentDecl

	// Schema is the registry entry for resource symbols, nil when the
	// token is not registered.
	Schema *schema.Resource
}

// BoundProgram is a program with its symbol table and configuration types
// resolved.
type BoundProgram struct {
	Program *ast.Program

	// Symbols maps each logical name to its declaration. All declaration
	// kinds share one namespace.
	Symbols map[string]*Symbol
	// Order holds the symbol names in declaration order.
	Order []string

	// ConfigTypes maps configuration parameter names to their resolved
	// types.
	ConfigTypes map[string]cty.Type
}

// Options controls binding behavior.
type Options struct {
	Registry *schema.Registry
	// Strict promotes schema mismatches that are tolerable at runtime
	// (unknown tokens, unknown properties) from warnings to errors.
	Strict bool
}

type binder struct {
	opts  Options
	bound *BoundProgram
	diags hcl.Diagnostics
}

// Bind resolves and checks a program. The returned BoundProgram is non-nil
// even when diagnostics contain errors; downstream stages must not run on
// an erroneous result.
func Bind(program *ast.Program, opts Options) (*BoundProgram, hcl.Diagnostics) {
	if opts.Registry == nil {
		opts.Registry = schema.NewRegistry()
	}
	b := &binder{
		opts: opts,
		bound: &BoundProgram{
			Program:     program,
			Symbols:     map[string]*Symbol{},
			ConfigTypes: map[string]cty.Type{},
		},
	}

	b.collectSymbols(program)
	b.checkConfig(program.Config)
	for _, r := range program.Resources {
		b.checkResource(r)
	}
	b.checkReferences(program)
	for _, c := range program.Components {
		b.checkComponent(c)
	}

	return b.bound, b.diags
}

func (b *binder) declare(sym *Symbol) {
	if sym.Name == AmbientName {
		b.errorAt(sym.DefRange, "reserved name",
			fmt.Sprintf("'%s' is reserved and cannot be used as a declaration name", AmbientName), nil)
		return
	}
	if existing, ok := b.bound.Symbols[sym.Name]; ok {
		err := &DuplicateNameError{Name: sym.Name, FirstKind: string(existing.Kind)}
		b.errorAt(sym.DefRange, "duplicate declaration", err.Error(), err)
		return
	}
	b.bound.Symbols[sym.Name] = sym
	b.bound.Order = append(b.bound.Order, sym.Name)
}

func (b *binder) collectSymbols(p *ast.Program) {
	for _, d := range p.Config {
		b.declare(&Symbol{Name: d.Name, Kind: KindConfig, DefRange: d.DefRange, Config: d})
	}
	for _, d := range p.Variables {
		b.declare(&Symbol{Name: d.Name, Kind: KindVariable, DefRange: d.DefRange, Variable: d})
	}
	for _, d := range p.Resources {
		sym := &Symbol{Name: d.LogicalName, Kind: KindResource, DefRange: d.DefRange, Resource: d}
		if sch, ok := b.opts.Registry.Resource(d.Token); ok {
			sym.Schema = sch
		}
		b.declare(sym)
	}
	for _, d := range p.Outputs {
		b.declare(&Symbol{Name: d.Name, Kind: KindOutput, DefRange: d.DefRange, Output: d})
	}
	for _, d := range p.Components {
		b.declare(&Symbol{Name: d.Name, Kind: KindComponent, DefRange: d.DefRange, Component: d})
	}
}

func (b *binder) checkConfig(decls []*ast.ConfigDecl) {
	for _, d := range decls {
		typ, err := schema.ConfigType(d.Type)
		if err != nil {
			b.errorAt(d.DefRange, "invalid configuration type", err.Error(), err)
			typ = cty.DynamicPseudoType
		}
		b.bound.ConfigTypes[d.Name] = typ

		for _, value := range []ast.Expr{d.Default, d.Value} {
			if value == nil {
				continue
			}
			lit, ok := literalValue(value)
			if !ok {
				continue
			}
			if _, convErr := convert.Convert(lit, typ); convErr != nil {
				err := &TypeMismatchError{Name: d.Name, Want: typ, Got: lit.Type()}
				b.errorAt(value.Range(), "configuration type mismatch", err.Error(), err)
			}
		}
	}
}

func (b *binder) checkResource(r *ast.ResourceDecl) {
	sym := b.bound.Symbols[r.LogicalName]
	if sym == nil || sym.Schema == nil {
		err := &UnknownTypeError{Token: r.Token}
		detail := err.Error() + "; properties will not be checked"
		if b.opts.Strict {
			b.errorAt(r.DefRange, "unknown resource type", err.Error(), err)
		} else {
			b.warnAt(r.DefRange, "unknown resource type", detail)
		}
		return
	}
	sch := sym.Schema

	if r.IsGet() || r.PropertiesExpr != nil {
		// External reads validate against outputs at evaluation time; a
		// whole-bag expression cannot be checked statically.
		return
	}

	seen := map[string]bool{}
	for _, prop := range r.Properties {
		seen[prop.Key] = true
		inputType, ok := sch.InputProperties[prop.Key]
		if !ok {
			msg := fmt.Sprintf("'%s' is not an input of %s", prop.Key, r.Token)
			if b.opts.Strict {
				b.errorAt(prop.KeyRange, "unknown property", msg, nil)
			} else {
				b.warnAt(prop.KeyRange, "unknown property", msg)
			}
			continue
		}
		lit, ok := literalValue(prop.Value)
		if !ok {
			continue
		}
		if _, convErr := convert.Convert(lit, inputType); convErr != nil {
			err := &TypeMismatchError{Name: prop.Key, Want: inputType, Got: lit.Type()}
			b.errorAt(prop.Value.Range(), "property type mismatch", err.Error(), err)
		}
	}

	for _, required := range sch.RequiredInputs {
		if !seen[required] {
			b.errorAt(r.DefRange, "missing required property",
				fmt.Sprintf("resource '%s' is missing required input '%s'", r.LogicalName, required), nil)
		}
	}
}

// checkReferences resolves every property access root against the program
// scope.
func (b *binder) checkReferences(p *ast.Program) {
	check := func(e ast.Expr) {
		if e == nil {
			return
		}
		for _, access := range ast.References(e) {
			b.resolveRoot(access, e.Range(), b.bound.Symbols)
		}
	}

	for _, d := range p.Config {
		check(d.Default)
		check(d.Value)
	}
	for _, d := range p.Variables {
		check(d.Value)
	}
	for _, r := range p.Resources {
		VisitResourceExprs(r, check)
	}
	for _, d := range p.Outputs {
		check(d.Value)
	}
}

// checkComponent binds a component body in its own scope: inputs,
// variables, and resources of the component only, plus the ambient symbol.
func (b *binder) checkComponent(c *ast.ComponentDecl) {
	scope := map[string]*Symbol{}
	declareLocal := func(sym *Symbol) {
		if existing, ok := scope[sym.Name]; ok {
			err := &DuplicateNameError{Name: sym.Name, FirstKind: string(existing.Kind)}
			b.errorAt(sym.DefRange, "duplicate declaration", err.Error(), err)
			return
		}
		scope[sym.Name] = sym
	}

	for _, d := range c.Inputs {
		declareLocal(&Symbol{Name: d.Name, Kind: KindConfig, DefRange: d.DefRange, Config: d})
	}
	for _, d := range c.Variables {
		declareLocal(&Symbol{Name: d.Name, Kind: KindVariable, DefRange: d.DefRange, Variable: d})
	}
	for _, r := range c.Resources {
		declareLocal(&Symbol{Name: r.LogicalName, Kind: KindResource, DefRange: r.DefRange, Resource: r})
	}

	check := func(e ast.Expr) {
		if e == nil {
			return
		}
		for _, access := range ast.References(e) {
			b.resolveRoot(access, e.Range(), scope)
		}
	}
	for _, d := range c.Inputs {
		check(d.Default)
	}
	for _, d := range c.Variables {
		check(d.Value)
	}
	for _, r := range c.Resources {
		VisitResourceExprs(r, check)
	}
	for _, d := range c.Outputs {
		check(d.Value)
	}
}

func (b *binder) resolveRoot(access *ast.PropertyAccess, rng hcl.Range, scope map[string]*Symbol) {
	root := access.RootName()
	if root == AmbientName {
		return
	}
	if _, ok := scope[root]; ok {
		return
	}
	err := &UnknownSymbolError{Name: root, Suggestion: closestName(root, scope)}
	b.errorAt(rng, "unknown symbol", err.Error(), err)
}

// closestName picks a did-you-mean candidate within a small edit distance.
func closestName(name string, scope map[string]*Symbol) string {
	best := ""
	bestDist := 3
	for candidate := range scope {
		if d := levenshtein.Distance(name, candidate, nil); d < bestDist || (d == bestDist && (best == "" || candidate < best)) {
			best = candidate
			bestDist = d
		}
	}
	return best
}

// VisitResourceExprs visits every expression a resource declaration
// contains: properties, get state, and option expressions.
func VisitResourceExprs(r *ast.ResourceDecl, fn func(ast.Expr)) {
	for _, prop := range r.Properties {
		fn(prop.Value)
	}
	fn(r.PropertiesExpr)
	if r.Get != nil {
		fn(r.Get.ID)
		for _, prop := range r.Get.State {
			fn(prop.Value)
		}
	}
	if opts := r.Options; opts != nil {
		fn(opts.DependsOn)
		fn(opts.Protect)
		fn(opts.Provider)
		fn(opts.Parent)
		fn(opts.DeletedWith)
		fn(opts.Providers)
		fn(opts.Aliases)
	}
}

// literalValue builds the cty value of a literal expression. Anything whose
// value depends on evaluation (references, builtins, interpolation) yields
// ok=false and is left for runtime checking.
func literalValue(e ast.Expr) (cty.Value, bool) {
	switch t := e.(type) {
	case *ast.NullExpr:
		return cty.NullVal(cty.DynamicPseudoType), true
	case *ast.BoolExpr:
		return cty.BoolVal(t.Value), true
	case *ast.NumberExpr:
		return cty.NumberFloatVal(t.Value), true
	case *ast.StringExpr:
		return cty.StringVal(t.Value), true
	case *ast.ListExpr:
		items := make([]cty.Value, 0, len(t.Items))
		for _, item := range t.Items {
			v, ok := literalValue(item)
			if !ok {
				return cty.NilVal, false
			}
			items = append(items, v)
		}
		if len(items) == 0 {
			return cty.EmptyTupleVal, true
		}
		return cty.TupleVal(items), true
	case *ast.ObjectExpr:
		attrs := map[string]cty.Value{}
		for _, entry := range t.Entries {
			key, ok := entry.Key.(*ast.StringExpr)
			if !ok {
				return cty.NilVal, false
			}
			v, ok := literalValue(entry.Value)
			if !ok {
				return cty.NilVal, false
			}
			attrs[key.Value] = v
		}
		if len(attrs) == 0 {
			return cty.EmptyObjectVal, true
		}
		return cty.ObjectVal(attrs), true
	}
	return cty.NilVal, false
}

func (b *binder) errorAt(rng hcl.Range, summary, detail string, extra any) {
	b.diags = append(b.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rangePtr(rng),
		Extra:    extra,
	})
}

func (b *binder) warnAt(rng hcl.Range, summary, detail string) {
	b.diags = append(b.diags, &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  summary,
		Detail:   detail,
		Subject:  rangePtr(rng),
	})
}

func rangePtr(r hcl.Range) *hcl.Range { return &r }
