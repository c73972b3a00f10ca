// Package codegen converts a typed program into PCL-style IR text: a
// deterministic HCL-like rendering with one block per declaration. Output
// is stable byte-for-byte for a given program, which the golden-file tests
// rely on.
//
// Conversion is purely structural: it never builds the dependency graph,
// so a program with a reference cycle still converts. Cycle detection is
// an evaluation-time concern.
package codegen
