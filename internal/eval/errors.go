package eval

import "fmt"

// UnknownValueError reports that an unknown value reached a position that
// requires a concrete one, such as the ID of an external read or an object
// key.
type UnknownValueError struct {
	// Context names the position that needed a concrete value.
	Context string
}

func (e *UnknownValueError) Error() string {
	return fmt.Sprintf("%s requires a value known at this point, but it is not computed yet", e.Context)
}
