// Package syntax loads raw document bytes into a structural tree with
// source-position tracking. It is the only package that touches the YAML
// wire format directly; everything downstream works on *Document.
//
// Loading enforces a bounded-expansion guard: anchors and aliases are kept
// as references in the structural tree, and the guard walks the reference
// graph counting the effective (flattened) node count and depth before any
// consumer expands it. A document whose expansion would exceed the
// configured ceiling fails immediately instead of exhausting memory.
package syntax
