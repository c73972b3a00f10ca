package bind

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// UnknownSymbolError reports a reference to a name no declaration defines.
type UnknownSymbolError struct {
	Name string
	// Suggestion is the closest declared name, empty when nothing is close.
	Suggestion string
}

func (e *UnknownSymbolError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown symbol '%s'; did you mean '%s'?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown symbol '%s'", e.Name)
}

// DuplicateNameError reports two declarations sharing one logical name.
type DuplicateNameError struct {
	Name string
	// FirstKind names the declaration kind that claimed the name first.
	FirstKind string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate node name %s: already defined as %s", e.Name, e.FirstKind)
}

// UnknownTypeError reports a resource token the registry does not know.
type UnknownTypeError struct {
	Token string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown resource type '%s'", e.Token)
}

// TypeMismatchError reports a value that cannot convert to its declared or
// schema type.
type TypeMismatchError struct {
	Name string
	Want cty.Type
	Got  cty.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("'%s' expects %s, got %s", e.Name, e.Want.FriendlyName(), e.Got.FriendlyName())
}
