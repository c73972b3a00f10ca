// Package schema describes the resource and function surface a program can
// bind against. A Registry is assembled by the host (tests use a hand-built
// one) and consulted by the binder for property checking and by the
// evaluator for secret tracking.
package schema

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Resource describes one resource type.
type Resource struct {
	// Token is the canonical type token, e.g. "aws:s3/bucket:Bucket".
	Token string

	// InputProperties maps input names to their declared types.
	InputProperties map[string]cty.Type
	// RequiredInputs lists inputs that must be present.
	RequiredInputs []string
	// Outputs maps output property names to their types. Inputs are
	// implicitly also outputs unless shadowed here.
	Outputs map[string]cty.Type
	// SecretInputs lists inputs whose values are always treated as secret.
	SecretInputs []string

	IsComponent bool
}

// HasInput reports whether name is a declared input.
func (r *Resource) HasInput(name string) bool {
	_, ok := r.InputProperties[name]
	return ok
}

// OutputType returns the type of an output property and whether it exists.
// Inputs double as outputs.
func (r *Resource) OutputType(name string) (cty.Type, bool) {
	if t, ok := r.Outputs[name]; ok {
		return t, true
	}
	if t, ok := r.InputProperties[name]; ok {
		return t, true
	}
	return cty.NilType, false
}

// SecretInput reports whether an input is schema-declared secret.
func (r *Resource) SecretInput(name string) bool {
	for _, s := range r.SecretInputs {
		if s == name {
			return true
		}
	}
	return false
}

// Function describes one invokable provider function.
type Function struct {
	Token string

	Inputs  map[string]cty.Type
	Outputs map[string]cty.Type
}

// Registry is the lookup surface for resource and function tokens. The
// zero value is empty and usable; lookups simply miss, which the binder
// reports or tolerates depending on strictness.
type Registry struct {
	resources map[string]*Resource
	functions map[string]*Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: map[string]*Resource{},
		functions: map[string]*Function{},
	}
}

// RegisterResource adds or replaces a resource type.
func (reg *Registry) RegisterResource(r *Resource) {
	reg.resources[r.Token] = r
}

// RegisterFunction adds or replaces a function.
func (reg *Registry) RegisterFunction(f *Function) {
	reg.functions[f.Token] = f
}

// Resource looks up a resource type by token.
func (reg *Registry) Resource(token string) (*Resource, bool) {
	r, ok := reg.resources[token]
	return r, ok
}

// Function looks up a function by token.
func (reg *Registry) Function(token string) (*Function, bool) {
	f, ok := reg.functions[token]
	return f, ok
}

// ResourceTokens returns all registered resource tokens, unordered.
func (reg *Registry) ResourceTokens() []string {
	tokens := make([]string, 0, len(reg.resources))
	for t := range reg.resources {
		tokens = append(tokens, t)
	}
	return tokens
}

// ConfigType parses a configuration parameter type token. An empty token
// means string. Supported: string, int, integer, number, bool, boolean,
// and list<T> for any supported T.
func ConfigType(token string) (cty.Type, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "", "string":
		return cty.String, nil
	case "int", "integer", "number":
		return cty.Number, nil
	case "bool", "boolean":
		return cty.Bool, nil
	}

	lower := strings.ToLower(strings.TrimSpace(token))
	if strings.HasPrefix(lower, "list<") && strings.HasSuffix(lower, ">") {
		inner, err := ConfigType(lower[len("list<") : len(lower)-1])
		if err != nil {
			return cty.NilType, fmt.Errorf("unsupported configuration type '%s'", token)
		}
		return cty.List(inner), nil
	}
	return cty.NilType, fmt.Errorf("unsupported configuration type '%s'", token)
}
