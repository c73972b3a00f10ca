package config

// Model is the unified engine configuration. Every stage of the pipeline
// receives the relevant fields explicitly; nothing reads ambient state.
type Model struct {
	// Workers bounds the number of graph nodes evaluated concurrently.
	Workers int

	// MaxExpansionNodes caps the effective node count of a document after
	// alias expansion. Crossing it aborts loading immediately.
	MaxExpansionNodes int

	// MaxExpansionDepth caps the flattened traversal depth of a document,
	// aliases included.
	MaxExpansionDepth int

	// MaxExprDepth caps the structural nesting depth of a single parsed
	// expression tree.
	MaxExprDepth int

	// Strict controls whether recoverable findings (unknown schema
	// properties, unconvertible constructs) are errors instead of warnings.
	Strict bool

	// DryRun selects preview-style evaluation: external reads still happen,
	// but values that depend on unperformed creates stay deferred.
	DryRun bool

	// Project and Stack name the ambient deployment identity exposed to
	// programs as ${pulumi.project} and ${pulumi.stack}.
	Project string
	Stack   string

	// Organization is exposed as ${pulumi.organization}.
	Organization string
}

// Default returns a Model with the limits used when the caller does not
// override them.
func Default() Model {
	return Model{
		Workers:           10,
		MaxExpansionNodes: 1_000_000,
		MaxExpansionDepth: 200,
		MaxExprDepth:      64,
		Strict:            false,
		DryRun:            true,
		Project:           "project",
		Stack:             "stack",
		Organization:      "organization",
	}
}
