package ast

import "github.com/hashicorp/hcl/v2"

// Program is the typed model of one program document. Declaration slices
// preserve document order; logical names are unique across all declaration
// kinds (enforced by the binder).
type Program struct {
	Name        string
	Description string

	Config     []*ConfigDecl
	Variables  []*VariableDecl
	Resources  []*ResourceDecl
	Outputs    []*OutputDecl
	Components []*ComponentDecl
}

// ConfigDecl declares one configuration parameter.
type ConfigDecl struct {
	Name string
	// Type is the raw declared type token (string, int, bool, list<...>).
	// Empty means string.
	Type    string
	Secret  bool
	Default Expr
	Value   Expr

	DefRange hcl.Range
}

// VariableDecl declares a named intermediate value.
type VariableDecl struct {
	Name  string
	Value Expr

	DefRange hcl.Range
}

// Property is one entry of an ordered property bag.
type Property struct {
	Key   string
	Value Expr

	KeyRange hcl.Range
}

// ResourceOptions are the per-resource modifiers. List-valued options
// preserve declaration order; it is semantically significant for the IR
// converter.
type ResourceOptions struct {
	DependsOn   Expr
	Protect     Expr
	Provider    Expr
	Parent      Expr
	DeletedWith Expr
	Providers   Expr
	Aliases     Expr

	IgnoreChanges           []string
	ReplaceOnChanges        []string
	AdditionalSecretOutputs []string

	Version           string
	PluginDownloadURL string
	Import            string

	RetainOnDelete      bool
	DeleteBeforeReplace bool

	CustomTimeouts *CustomTimeouts
}

// CustomTimeouts overrides provider operation timeouts.
type CustomTimeouts struct {
	Create string
	Update string
	Delete string
}

// GetDecl marks a resource as an external read: the resource's state is
// fetched from the provider by ID instead of being created.
type GetDecl struct {
	ID    Expr
	State []*Property
}

// ResourceDecl declares one resource.
type ResourceDecl struct {
	LogicalName string
	Token       string
	// Name overrides the physical name sent to the provider; the logical
	// name is still the unique program-level identifier.
	Name            string
	DefaultProvider bool

	// Properties is the ordered property bag. When the whole bag is a
	// single expression instead of a mapping, PropertiesExpr is set and
	// Properties is nil.
	Properties     []*Property
	PropertiesExpr Expr

	Options *ResourceOptions
	Get     *GetDecl

	DefRange hcl.Range
}

// IsGet reports whether this declaration reads existing external state.
func (r *ResourceDecl) IsGet() bool { return r.Get != nil }

// OutputDecl declares one stack output.
type OutputDecl struct {
	Name  string
	Value Expr

	DefRange hcl.Range
}

// ComponentDecl declares a component: a named sub-program with typed
// inputs.
type ComponentDecl struct {
	Name        string
	Description string

	Inputs    []*ConfigDecl
	Variables []*VariableDecl
	Resources []*ResourceDecl
	Outputs   []*OutputDecl

	DefRange hcl.Range
}
