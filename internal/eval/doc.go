// Package eval executes a bound program: configuration and variables are
// computed, resources become registration intents handed to a Provider,
// and outputs are collected. Values a preview cannot know yet (resource
// IDs before creation) are represented as unknowns that propagate through
// every expression touching them.
package eval
