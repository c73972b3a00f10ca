// Package app wires the pipeline together: load, build, bind, then either
// evaluate against a provider or convert to IR text. It owns the logger
// and the application configuration.
package app
