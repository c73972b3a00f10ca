package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// PropertyAccess is a chain of accessors rooted at a symbol name, e.g.
// `bucket.tags["env"]` or `items[0].id`.
type PropertyAccess struct {
	Accessors []Accessor
}

// Accessor is one step of a property access chain.
type Accessor interface {
	accessor()
}

// NameAccessor is a dotted name step (or the root name).
type NameAccessor struct {
	Name string
}

// StringSubscript is a bracketed string key step: ["key"].
type StringSubscript struct {
	Key string
}

// IntSubscript is a bracketed integer index step: [3].
type IntSubscript struct {
	Index int64
}

func (NameAccessor) accessor()    {}
func (StringSubscript) accessor() {}
func (IntSubscript) accessor()    {}

// RootName returns the symbol name the chain is rooted at.
func (p *PropertyAccess) RootName() string {
	switch a := p.Accessors[0].(type) {
	case NameAccessor:
		return a.Name
	case StringSubscript:
		return a.Key
	default:
		// The parser rejects integer roots; reaching this is a bug.
		panic("ast: property access rooted at integer subscript")
	}
}

// String renders the chain in source form.
func (p *PropertyAccess) String() string {
	var b strings.Builder
	for i, acc := range p.Accessors {
		switch a := acc.(type) {
		case NameAccessor:
			if i != 0 {
				b.WriteByte('.')
			}
			b.WriteString(a.Name)
		case StringSubscript:
			fmt.Fprintf(&b, "[%q]", a.Key)
		case IntSubscript:
			fmt.Fprintf(&b, "[%d]", a.Index)
		}
	}
	return b.String()
}

// parsePropertyAccess consumes a property access chain from input, stopping
// at and consuming the closing '}'. It returns the unconsumed remainder.
// The input is expected to start immediately after the `${` marker.
//
// On malformed input it appends a diagnostic and returns ok=false.
func parsePropertyAccess(input string, rng hcl.Range, diags *hcl.Diagnostics) (rest string, access *PropertyAccess, ok bool) {
	var accessors []Accessor
	remaining := input

	for remaining != "" {
		switch remaining[0] {
		case '}':
			if len(accessors) == 0 {
				appendSyntaxError(diags, rng, "empty property name")
				return "", nil, false
			}
			return remaining[1:], &PropertyAccess{Accessors: accessors}, true

		case '.':
			remaining = remaining[1:]

		case '[':
			if len(remaining) > 1 && remaining[1] == '"' {
				key, rest2, err := scanQuotedKey(remaining[2:])
				if err != "" {
					appendSyntaxError(diags, rng, err)
					return "", nil, false
				}
				accessors = append(accessors, StringSubscript{Key: key})
				remaining = rest2
			} else {
				rbracket := strings.IndexByte(remaining, ']')
				if rbracket < 0 {
					appendSyntaxError(diags, rng, "missing closing bracket in list index")
					return "", nil, false
				}
				index, err := strconv.ParseInt(remaining[1:rbracket], 10, 64)
				if err != nil {
					appendSyntaxError(diags, rng, "invalid list index")
					return "", nil, false
				}
				if len(accessors) == 0 {
					appendSyntaxError(diags, rng, "the root property must be a string subscript or a name")
					return "", nil, false
				}
				accessors = append(accessors, IntSubscript{Index: index})
				remaining = remaining[rbracket+1:]
			}

		default:
			end := strings.IndexAny(remaining, ".[}")
			if end < 0 {
				end = len(remaining)
			}
			name := remaining[:end]
			if name == "" {
				appendSyntaxError(diags, rng, "empty property name")
				return "", nil, false
			}
			accessors = append(accessors, NameAccessor{Name: name})
			remaining = remaining[end:]
		}
	}

	appendSyntaxError(diags, rng, "missing closing brace in interpolation")
	return "", nil, false
}

// scanQuotedKey scans a ["..."] subscript starting just past the opening
// quote. It returns the unquoted key and the remainder past the closing ']',
// or a non-empty error message.
func scanQuotedKey(s string) (key, rest, errMsg string) {
	var b strings.Builder
	i := 0
	for {
		if i >= len(s) {
			return "", "", "missing closing quote in property name"
		}
		switch {
		case s[i] == '"':
			i++
			if i >= len(s) || s[i] != ']' {
				return "", "", "missing closing bracket in property access"
			}
			return b.String(), s[i+1:], ""
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '"':
			b.WriteByte('"')
			i += 2
		default:
			b.WriteByte(s[i])
			i++
		}
	}
}

// ParseFullPropertyAccess parses a complete property access expression with
// no trailing input, as used inside template blocks ({{ bucket.id }}).
func ParseFullPropertyAccess(input string, rng hcl.Range, diags *hcl.Diagnostics) (*PropertyAccess, bool) {
	rest, access, ok := parsePropertyAccess(input+"}", rng, diags)
	if !ok {
		return nil, false
	}
	if rest != "" {
		appendSyntaxError(diags, rng, fmt.Sprintf("unexpected trailing input %q in expression", rest))
		return nil, false
	}
	return access, true
}

// IsValidPropertyName reports whether s matches [a-zA-Z_$][a-zA-Z0-9_$]*.
func IsValidPropertyName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func appendSyntaxError(diags *hcl.Diagnostics, rng hcl.Range, msg string) {
	*diags = append(*diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "invalid expression syntax",
		Detail:   msg,
		Subject:  &rng,
	})
}
