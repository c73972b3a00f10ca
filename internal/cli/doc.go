// Package cli parses command-line arguments into application settings.
package cli
