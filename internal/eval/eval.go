package eval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/bind"
	"github.com/vk/yamlstack/internal/config"
	"github.com/vk/yamlstack/internal/dag"
)

// ReadPhase tracks an external read through its lifecycle.
type ReadPhase int

const (
	// ReadDeclared: the declaration exists but evaluation has not reached it.
	ReadDeclared ReadPhase = iota
	// ReadPending: the provider read is in flight.
	ReadPending
	// ReadResolved: state arrived and the resource value is usable.
	ReadResolved
	// ReadFailed: the provider read failed; dependents are skipped.
	ReadFailed
)

// Result is the outcome of evaluating a program.
type Result struct {
	// Intents lists resource registrations in the order they were
	// requested.
	Intents []*RegistrationIntent
	// Outputs holds the stack outputs in declaration order. Outputs whose
	// node failed or was skipped are absent.
	Outputs []Field
	// Failed maps node names to their failure.
	Failed map[string]error
	// Skipped maps node names to the upstream failure that skipped them.
	Skipped map[string]string
}

// Evaluator runs a bound program against a provider.
type Evaluator struct {
	bound    *bind.BoundProgram
	provider Provider
	cfg      config.Model
	cwd      string

	mu         sync.Mutex
	values     map[string]Value
	intents    []*RegistrationIntent
	readPhases map[string]ReadPhase
}

// New creates an evaluator. The provider must be non-nil.
func New(bound *bind.BoundProgram, provider Provider, cfg config.Model) *Evaluator {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	e := &Evaluator{
		bound:      bound,
		provider:   provider,
		cfg:        cfg,
		cwd:        cwd,
		values:     map[string]Value{},
		readPhases: map[string]ReadPhase{},
	}
	for _, sym := range bound.Symbols {
		if sym.Kind == bind.KindResource && sym.Resource.IsGet() {
			e.readPhases[sym.Name] = ReadDeclared
		}
	}
	return e
}

// Run builds the dependency graph and executes it. Graph-level problems
// (cycles) surface as diagnostics; node-level failures land in the Result.
func (e *Evaluator) Run(ctx context.Context) (*Result, hcl.Diagnostics) {
	graph, diags := dag.Build(e.bound)
	if diags.HasErrors() {
		return nil, diags
	}

	executor := dag.NewExecutor(graph, e.cfg.Workers, e.evalNode)
	outcome := executor.Run(ctx)

	result := &Result{
		Intents: e.snapshotIntents(),
		Failed:  outcome.Failed,
		Skipped: outcome.Skipped,
	}
	for _, d := range e.bound.Program.Outputs {
		if v, ok := e.getValue(d.Name); ok {
			result.Outputs = append(result.Outputs, Field{Key: d.Name, Value: v})
		}
	}
	return result, diags
}

// ReadPhase reports the lifecycle phase of an external read.
func (e *Evaluator) ReadPhase(name string) ReadPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readPhases[name]
}

// Value returns the computed value of a node, if the node completed.
func (e *Evaluator) Value(name string) (Value, bool) { return e.getValue(name) }

func (e *Evaluator) evalNode(ctx context.Context, node *dag.Node) error {
	sym := node.Symbol
	switch sym.Kind {
	case bind.KindConfig:
		v, err := e.evalConfig(ctx, sym.Config)
		if err != nil {
			return err
		}
		e.setValue(sym.Name, v)
	case bind.KindVariable:
		v, err := e.evalExpr(ctx, sym.Variable.Value)
		if err != nil {
			return err
		}
		e.setValue(sym.Name, v)
	case bind.KindResource:
		v, err := e.evalResource(ctx, sym)
		if err != nil {
			return err
		}
		e.setValue(sym.Name, v)
	case bind.KindOutput:
		v, err := e.evalExpr(ctx, sym.Output.Value)
		if err != nil {
			return err
		}
		e.setValue(sym.Name, v)
	}
	return nil
}

func (e *Evaluator) evalConfig(ctx context.Context, d *ast.ConfigDecl) (Value, error) {
	expr := d.Value
	if expr == nil {
		expr = d.Default
	}
	if expr == nil {
		return Value{}, fmt.Errorf("missing required configuration '%s'", d.Name)
	}
	v, err := e.evalExpr(ctx, expr)
	if err != nil {
		return Value{}, err
	}
	if typ, ok := e.bound.ConfigTypes[d.Name]; ok {
		v, err = coerceConfig(d.Name, v, typ)
		if err != nil {
			return Value{}, err
		}
	}
	if d.Secret {
		v = v.Secret()
	}
	return v, nil
}

func (e *Evaluator) evalResource(ctx context.Context, sym *bind.Symbol) (Value, error) {
	r := sym.Resource

	inputs, err := e.evalResourceInputs(ctx, r)
	if err != nil {
		return Value{}, err
	}
	if sym.Schema != nil {
		for i, f := range inputs {
			if sym.Schema.SecretInput(f.Key) {
				inputs[i].Value = f.Value.Secret()
			}
		}
	}

	opts, err := e.resolveOptions(ctx, r.Options)
	if err != nil {
		return Value{}, err
	}

	physical := r.Name
	if physical == "" {
		physical = r.LogicalName
	}

	intent := &RegistrationIntent{
		Name:         r.LogicalName,
		Token:        r.Token,
		PhysicalName: physical,
		URN:          fmt.Sprintf("urn:pulumi:%s::%s::%s::%s", e.cfg.Stack, e.cfg.Project, r.Token, r.LogicalName),
		Inputs:       inputs,
		Options:      opts,
	}

	if r.IsGet() {
		return e.readResource(ctx, sym, intent)
	}

	e.appendIntent(intent)

	rv := &ResourceValue{
		Name:  r.LogicalName,
		Token: r.Token,
		URN:   intent.URN,
	}
	if e.cfg.DryRun {
		// The resource does not exist yet; its physical ID cannot be known.
		rv.ID = Unknown()
		rv.Outputs = inputs
	} else {
		state, regErr := e.provider.Register(ctx, intent)
		if regErr != nil {
			return Value{}, regErr
		}
		rv.ID = String(state.ID)
		rv.Outputs = state.Outputs
	}
	return Resource(rv), nil
}

// readResource drives the external-read lifecycle: the provider is asked
// for existing state before any dependent runs, even during a dry run.
func (e *Evaluator) readResource(ctx context.Context, sym *bind.Symbol, intent *RegistrationIntent) (Value, error) {
	r := sym.Resource

	idVal, err := e.evalExpr(ctx, r.Get.ID)
	if err != nil {
		return Value{}, err
	}
	if idVal.IsUnknown() {
		return Value{}, &UnknownValueError{Context: fmt.Sprintf("the id of external read '%s'", r.LogicalName)}
	}
	if idVal.Kind() != KindString {
		return Value{}, fmt.Errorf("the id of external read '%s' must be a string, got %s", r.LogicalName, idVal.Kind())
	}

	var stateHints []Field
	for _, prop := range r.Get.State {
		v, propErr := e.evalExpr(ctx, prop.Value)
		if propErr != nil {
			return Value{}, propErr
		}
		stateHints = append(stateHints, Field{Key: prop.Key, Value: v})
	}

	intent.ReadID = idVal.AsString()
	intent.Inputs = stateHints
	e.appendIntent(intent)

	e.setReadPhase(r.LogicalName, ReadPending)
	state, err := e.provider.Read(ctx, r.Token, intent.ReadID, stateHints)
	if err != nil {
		e.setReadPhase(r.LogicalName, ReadFailed)
		return Value{}, fmt.Errorf("reading '%s': %w", r.LogicalName, err)
	}
	e.setReadPhase(r.LogicalName, ReadResolved)

	return Resource(&ResourceValue{
		Name:     r.LogicalName,
		Token:    r.Token,
		URN:      intent.URN,
		ID:       String(state.ID),
		External: true,
		Outputs:  state.Outputs,
	}), nil
}

func (e *Evaluator) evalResourceInputs(ctx context.Context, r *ast.ResourceDecl) ([]Field, error) {
	if r.PropertiesExpr != nil {
		v, err := e.evalExpr(ctx, r.PropertiesExpr)
		if err != nil {
			return nil, err
		}
		switch v.Kind() {
		case KindObject:
			return v.AsObject(), nil
		case KindNull:
			return nil, nil
		case KindUnknown:
			return nil, &UnknownValueError{Context: fmt.Sprintf("the property bag of resource '%s'", r.LogicalName)}
		default:
			return nil, fmt.Errorf("the properties of resource '%s' must be an object, got %s", r.LogicalName, v.Kind())
		}
	}

	var fields []Field
	for _, prop := range r.Properties {
		v, err := e.evalExpr(ctx, prop.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: prop.Key, Value: v})
	}
	return fields, nil
}

func (e *Evaluator) resolveOptions(ctx context.Context, o *ast.ResourceOptions) (ResolvedOptions, error) {
	var out ResolvedOptions
	if o == nil {
		return out, nil
	}

	if o.DependsOn != nil {
		v, err := e.evalExpr(ctx, o.DependsOn)
		if err != nil {
			return out, err
		}
		names, err := resourceNames("dependsOn", v)
		if err != nil {
			return out, err
		}
		out.DependsOn = names
	}
	if o.Protect != nil {
		v, err := e.evalExpr(ctx, o.Protect)
		if err != nil {
			return out, err
		}
		if v.Kind() != KindBool {
			return out, fmt.Errorf("'protect' must be a boolean, got %s", v.Kind())
		}
		out.Protect = v.AsBool()
	}
	for _, ref := range []struct {
		name string
		expr ast.Expr
		dst  *string
	}{
		{"provider", o.Provider, &out.Provider},
		{"parent", o.Parent, &out.Parent},
		{"deletedWith", o.DeletedWith, &out.DeletedWith},
	} {
		if ref.expr == nil {
			continue
		}
		v, err := e.evalExpr(ctx, ref.expr)
		if err != nil {
			return out, err
		}
		if v.Kind() != KindResource {
			return out, fmt.Errorf("'%s' must reference a resource, got %s", ref.name, v.Kind())
		}
		*ref.dst = v.AsResource().Name
	}

	out.IgnoreChanges = o.IgnoreChanges
	out.ReplaceOnChanges = o.ReplaceOnChanges
	out.AdditionalSecretOutputs = o.AdditionalSecretOutputs
	out.Version = o.Version
	out.PluginDownloadURL = o.PluginDownloadURL
	out.Import = o.Import
	out.RetainOnDelete = o.RetainOnDelete
	out.DeleteBeforeReplace = o.DeleteBeforeReplace
	return out, nil
}

// resourceNames extracts logical names from a dependsOn value: a resource,
// a name string, or a list of either.
func resourceNames(option string, v Value) ([]string, error) {
	single := func(item Value) (string, error) {
		switch item.Kind() {
		case KindResource:
			return item.AsResource().Name, nil
		case KindString:
			return item.AsString(), nil
		}
		return "", fmt.Errorf("'%s' entries must be resources, got %s", option, item.Kind())
	}

	if v.Kind() == KindList {
		names := make([]string, 0, len(v.AsList()))
		for _, item := range v.AsList() {
			name, err := single(item)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		return names, nil
	}
	name, err := single(v)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// evalExpr evaluates one expression. Unknown operands generally make the
// result unknown; positions that must be concrete return UnknownValueError
// at their specific call sites.
func (e *Evaluator) evalExpr(ctx context.Context, expr ast.Expr) (Value, error) {
	switch t := expr.(type) {
	case nil:
		return Null(), nil
	case *ast.NullExpr:
		return Null(), nil
	case *ast.BoolExpr:
		return Bool(t.Value), nil
	case *ast.NumberExpr:
		return Number(t.Value), nil
	case *ast.StringExpr:
		return String(t.Value), nil

	case *ast.SymbolExpr:
		return e.resolveAccess(t.Access)

	case *ast.InterpolateExpr:
		return e.evalInterpolation(t)

	case *ast.TemplateExpr:
		return e.evalTemplate(t)

	case *ast.ListExpr:
		items := make([]Value, 0, len(t.Items))
		for _, item := range t.Items {
			v, err := e.evalExpr(ctx, item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items), nil

	case *ast.ObjectExpr:
		fields := make([]Field, 0, len(t.Entries))
		for _, entry := range t.Entries {
			key, err := e.evalExpr(ctx, entry.Key)
			if err != nil {
				return Value{}, err
			}
			if key.IsUnknown() {
				return Value{}, &UnknownValueError{Context: "an object key"}
			}
			if key.Kind() != KindString {
				return Value{}, fmt.Errorf("object keys must be strings, got %s", key.Kind())
			}
			v, err := e.evalExpr(ctx, entry.Value)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: key.AsString(), Value: v})
		}
		return Object(fields), nil

	default:
		return e.evalBuiltin(ctx, expr)
	}
}

func (e *Evaluator) evalInterpolation(t *ast.InterpolateExpr) (Value, error) {
	var sb []byte
	secret := false
	for _, part := range t.Parts {
		sb = append(sb, part.Text...)
		if part.Value == nil {
			continue
		}
		v, err := e.resolveAccess(part.Value)
		if err != nil {
			return Value{}, err
		}
		secret = secret || v.IsSecret()
		if v.IsUnknown() {
			result := Unknown()
			if secret {
				result = result.Secret()
			}
			return result, nil
		}
		s, ok := v.StringifyScalar()
		if !ok {
			return Value{}, fmt.Errorf("cannot interpolate a %s value into a string", v.Kind())
		}
		sb = append(sb, s...)
	}
	result := String(string(sb))
	if secret {
		result = result.Secret()
	}
	return result, nil
}

func (e *Evaluator) evalTemplate(t *ast.TemplateExpr) (Value, error) {
	var sb []byte
	secret := false
	unknown := false

	var render func(nodes []ast.TemplateNode) error
	render = func(nodes []ast.TemplateNode) error {
		for _, n := range nodes {
			switch node := n.(type) {
			case ast.TemplateLiteral:
				sb = append(sb, node.Text...)
			case ast.TemplateInterp:
				v, err := e.resolveAccess(node.Value)
				if err != nil {
					return err
				}
				secret = secret || v.IsSecret()
				if v.IsUnknown() {
					unknown = true
					return nil
				}
				s, ok := v.StringifyScalar()
				if !ok {
					return fmt.Errorf("cannot interpolate a %s value into a template", v.Kind())
				}
				sb = append(sb, s...)
			case *ast.TemplateIf:
				cond, err := e.resolveAccess(node.Cond)
				if err != nil {
					return err
				}
				secret = secret || cond.IsSecret()
				if cond.IsUnknown() {
					unknown = true
					return nil
				}
				branch := node.Then
				if cond.Truthy() == node.Negated {
					branch = node.Else
				}
				if err := render(branch); err != nil {
					return err
				}
			}
			if unknown {
				return nil
			}
		}
		return nil
	}

	if err := render(t.Nodes); err != nil {
		return Value{}, err
	}
	var result Value
	if unknown {
		result = Unknown()
	} else {
		result = String(string(sb))
	}
	if secret {
		result = result.Secret()
	}
	return result, nil
}

// resolveAccess walks a property access starting at a declared node's
// value or the ambient symbol.
func (e *Evaluator) resolveAccess(access *ast.PropertyAccess) (Value, error) {
	root := access.RootName()
	if root == bind.AmbientName {
		return e.resolveAmbient(access)
	}

	v, ok := e.getValue(root)
	if !ok {
		// The scheduler guarantees dependencies complete first; a miss
		// means the graph is missing an edge.
		return Value{}, fmt.Errorf("internal: '%s' referenced before evaluation", root)
	}
	return traverse(v, access.Accessors[1:], root)
}

// resolveAmbient serves the reserved project-metadata symbol.
func (e *Evaluator) resolveAmbient(access *ast.PropertyAccess) (Value, error) {
	if len(access.Accessors) < 2 {
		return Value{}, fmt.Errorf("'%s' cannot be used as a value; access one of its properties", bind.AmbientName)
	}
	name, ok := access.Accessors[1].(ast.NameAccessor)
	if !ok {
		return Value{}, fmt.Errorf("'%s' properties must be accessed by name", bind.AmbientName)
	}

	var v Value
	switch name.Name {
	case "cwd":
		v = String(e.cwd)
	case "project":
		v = String(e.cfg.Project)
	case "stack":
		v = String(e.cfg.Stack)
	case "organization":
		v = String(e.cfg.Organization)
	default:
		return Value{}, fmt.Errorf("unknown property '%s' on '%s'", name.Name, bind.AmbientName)
	}
	return traverse(v, access.Accessors[2:], bind.AmbientName+"."+name.Name)
}

// traverse applies the remaining accessors to a value. Unknown containers
// absorb any access; secret marks flow from container to element.
func traverse(v Value, accessors []ast.Accessor, path string) (Value, error) {
	for _, acc := range accessors {
		if v.IsUnknown() {
			return v, nil
		}
		secret := v.IsSecret()

		switch a := acc.(type) {
		case ast.NameAccessor:
			next, err := accessField(v, a.Name, path)
			if err != nil {
				return Value{}, err
			}
			v = next
			path += "." + a.Name
		case ast.StringSubscript:
			next, err := accessField(v, a.Key, path)
			if err != nil {
				return Value{}, err
			}
			v = next
			path += fmt.Sprintf("[%q]", a.Key)
		case ast.IntSubscript:
			if v.Kind() != KindList {
				return Value{}, fmt.Errorf("cannot index a %s value at '%s'", v.Kind(), path)
			}
			items := v.AsList()
			if a.Index < 0 || int(a.Index) >= len(items) {
				return Value{}, fmt.Errorf("index %d out of bounds for '%s' (length %d)", a.Index, path, len(items))
			}
			v = items[a.Index]
			path += fmt.Sprintf("[%d]", a.Index)
		}

		if secret {
			v = v.Secret()
		}
	}
	return v, nil
}

func accessField(v Value, name, path string) (Value, error) {
	switch v.Kind() {
	case KindObject:
		if f, ok := v.ObjectField(name); ok {
			return f, nil
		}
		return Value{}, fmt.Errorf("no property '%s' on '%s'", name, path)
	case KindResource:
		res := v.AsResource()
		switch name {
		case "id":
			return res.ID, nil
		case "urn":
			return String(res.URN), nil
		}
		for _, f := range res.Outputs {
			if f.Key == name {
				return f.Value, nil
			}
		}
		if res.External {
			return Value{}, fmt.Errorf("no property '%s' on '%s'", name, path)
		}
		// Outputs the preview cannot see yet resolve after creation.
		return Unknown(), nil
	}
	return Value{}, fmt.Errorf("cannot access property '%s' on a %s value at '%s'", name, v.Kind(), path)
}

// coerceConfig converts a configuration value to its declared type.
func coerceConfig(name string, v Value, typ cty.Type) (Value, error) {
	if v.IsUnknown() || typ == cty.DynamicPseudoType {
		return v, nil
	}
	switch {
	case typ == cty.String:
		if s, ok := v.StringifyScalar(); ok {
			out := String(s)
			if v.IsSecret() {
				out = out.Secret()
			}
			return out, nil
		}
	case typ == cty.Number:
		if v.Kind() == KindNumber {
			return v, nil
		}
		if v.Kind() == KindString {
			if n, err := strconv.ParseFloat(v.AsString(), 64); err == nil {
				return Number(n).withSecretFrom(v), nil
			}
		}
	case typ == cty.Bool:
		if v.Kind() == KindBool {
			return v, nil
		}
		if v.Kind() == KindString {
			if b, err := strconv.ParseBool(v.AsString()); err == nil {
				return Bool(b).withSecretFrom(v), nil
			}
		}
	case typ.IsListType():
		if v.Kind() == KindList {
			items := make([]Value, 0, len(v.AsList()))
			for _, item := range v.AsList() {
				coerced, err := coerceConfig(name, item, typ.ElementType())
				if err != nil {
					return Value{}, err
				}
				items = append(items, coerced)
			}
			out := List(items)
			if v.IsSecret() {
				out = out.Secret()
			}
			return out, nil
		}
	}
	return Value{}, fmt.Errorf("configuration '%s' expects %s, got %s", name, typ.FriendlyName(), v.Kind())
}

func (e *Evaluator) getValue(name string) (Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.values[name]
	return v, ok
}

// setValue records a node result exactly once.
func (e *Evaluator) setValue(name string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.values[name]; ok {
		panic(fmt.Sprintf("value for '%s' written twice", name))
	}
	e.values[name] = v
}

func (e *Evaluator) appendIntent(intent *RegistrationIntent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intents = append(e.intents, intent)
}

// snapshotIntents returns the intents in declaration order. Workers append
// in completion order, which varies from run to run; sorting by the bound
// Order keeps the result reproducible for a fixed program.
func (e *Evaluator) snapshotIntents() []*RegistrationIntent {
	e.mu.Lock()
	defer e.mu.Unlock()

	position := make(map[string]int, len(e.bound.Order))
	for i, name := range e.bound.Order {
		position[name] = i
	}
	intents := append([]*RegistrationIntent{}, e.intents...)
	sort.SliceStable(intents, func(i, j int) bool {
		return position[intents[i].Name] < position[intents[j].Name]
	})
	return intents
}

func (e *Evaluator) setReadPhase(name string, phase ReadPhase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readPhases[name] = phase
}
