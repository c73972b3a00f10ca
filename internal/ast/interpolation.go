package ast

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// InterpolationPart is one fragment of an interpolated string: a literal
// text prefix followed by an optional property access.
type InterpolationPart struct {
	// Text is the literal text before the access (or the trailing text).
	Text string
	// Value is the property access for this part, nil for trailing text.
	Value *PropertyAccess
}

// HasInterpolations reports whether s contains any unescaped ${...} marker.
// `$$` escapes a dollar sign.
func HasInterpolations(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '$' {
			if s[i+1] == '{' {
				return true
			}
			if s[i+1] == '$' {
				i++
			}
		}
	}
	return false
}

// ParseInterpolation splits an interpolated string into its parts.
//
// Syntax:
//   - `$$` produces a single literal `$`
//   - `${...}` is a property access
//   - everything else is literal text
func ParseInterpolation(input string, rng hcl.Range, diags *hcl.Diagnostics) []InterpolationPart {
	var parts []InterpolationPart
	var text strings.Builder

	i := 0
	for i < len(input) {
		if input[i] == '$' && i+1 < len(input) {
			switch input[i+1] {
			case '$':
				text.WriteByte('$')
				i += 2
				continue
			case '{':
				rest, access, ok := parsePropertyAccess(input[i+2:], rng, diags)
				if ok {
					parts = append(parts, InterpolationPart{Text: text.String(), Value: access})
					text.Reset()
				}
				i = len(input) - len(rest)
				continue
			}
		}
		text.WriteByte(input[i])
		i++
	}

	if text.Len() > 0 {
		parts = append(parts, InterpolationPart{Text: text.String()})
	}
	return parts
}
