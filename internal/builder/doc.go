// Package builder turns a loaded structural document into the typed
// program model. It validates document shape only; name resolution and
// type checking happen later in the binder.
//
// The builder recovers per declaration: a malformed resource yields
// diagnostics for that resource and building continues with the rest of
// the document, so one mistake does not hide every other mistake.
package builder
