// Package ast defines the typed program model and the embedded expression
// language: interpolation strings, property-access chains, fn:: builtin
// calls, and block-style templates. Expressions are immutable once built;
// the binder and evaluator only read them.
//
// The expression grammar is a closed set of variants. Parsing is bounded
// recursive descent: structural nesting depth is limited by configuration,
// so parse time and stack usage on hostile input are bounded independent of
// the input's declared recursion.
package ast
