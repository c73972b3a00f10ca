package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the runtime value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
	KindResource
	KindAsset
	KindArchive
	// KindUnknown is a value that cannot be computed yet, such as a
	// physical resource ID during a preview. Unknowns absorb every
	// operation applied to them.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindResource:
		return "resource"
	case KindAsset:
		return "asset"
	case KindArchive:
		return "archive"
	case KindUnknown:
		return "unknown"
	}
	return "invalid"
}

// Field is one entry of an object value. Objects preserve insertion order;
// serialization and IR generation depend on it.
type Field struct {
	Key   string
	Value Value
}

// ResourceState is the provider-visible state of a resource: its ID plus
// output properties.
type ResourceState struct {
	ID      string
	Outputs []Field
}

// ResourceValue is the evaluated form of a resource declaration. Property
// access on the resource resolves against Outputs, with "id" and "urn"
// always present.
type ResourceValue struct {
	Name  string
	Token string
	URN   string
	// ID is unknown during previews of resources that do not exist yet.
	ID Value
	// External marks state fetched with get rather than registered.
	External bool

	Outputs []Field
}

// AssetValue is a constructed asset. Source holds the literal text, file
// path, or URL depending on the constructor.
type AssetValue struct {
	Constructor string
	Source      string
}

// ArchiveValue is a constructed archive. Either Source or Entries is set;
// Entries is used by the asset-archive form.
type ArchiveValue struct {
	Constructor string
	Source      string
	Entries     []Field
}

// Value is the closed runtime value variant. The zero value is null.
// Values are immutable; Secret produces a marked copy.
type Value struct {
	kind   Kind
	secret bool

	b    bool
	n    float64
	s    string
	list []Value
	obj  []Field

	res     *ResourceValue
	asset   *AssetValue
	archive *ArchiveValue
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value.
func List(items []Value) Value { return Value{kind: KindList, list: items} }

// Object returns an object value preserving field order.
func Object(fields []Field) Value { return Value{kind: KindObject, obj: fields} }

// Resource wraps an evaluated resource.
func Resource(r *ResourceValue) Value { return Value{kind: KindResource, res: r} }

// Asset wraps an asset.
func Asset(a *AssetValue) Value { return Value{kind: KindAsset, asset: a} }

// Archive wraps an archive.
func Archive(a *ArchiveValue) Value { return Value{kind: KindArchive, archive: a} }

// Unknown returns the unknown value.
func Unknown() Value { return Value{kind: KindUnknown} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsUnknown reports whether the value is unknown.
func (v Value) IsUnknown() bool { return v.kind == KindUnknown }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsSecret reports whether the value carries the secret mark.
func (v Value) IsSecret() bool { return v.secret }

// Secret returns a copy of v carrying the secret mark.
func (v Value) Secret() Value {
	v.secret = true
	return v
}

// withSecretFrom propagates the secret mark of the operands onto a result.
func (v Value) withSecretFrom(operands ...Value) Value {
	for _, op := range operands {
		if op.secret {
			v.secret = true
			break
		}
	}
	return v
}

// AsBool returns the boolean payload. Valid only for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload. Valid only for KindNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsString returns the string payload. Valid only for KindString.
func (v Value) AsString() string { return v.s }

// AsList returns the list payload. Valid only for KindList.
func (v Value) AsList() []Value { return v.list }

// AsObject returns the ordered fields. Valid only for KindObject.
func (v Value) AsObject() []Field { return v.obj }

// AsResource returns the resource payload. Valid only for KindResource.
func (v Value) AsResource() *ResourceValue { return v.res }

// AsAsset returns the asset payload. Valid only for KindAsset.
func (v Value) AsAsset() *AssetValue { return v.asset }

// AsArchive returns the archive payload. Valid only for KindArchive.
func (v Value) AsArchive() *ArchiveValue { return v.archive }

// ObjectField looks a field up by key.
func (v Value) ObjectField(key string) (Value, bool) {
	for _, f := range v.obj {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Truthy implements the template conditional rule: null, false, zero, the
// empty string, and empty collections are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindObject:
		return len(v.obj) > 0
	}
	return true
}

// StringifyScalar renders a scalar for interpolation into text. Integral
// numbers print without a fraction.
func (v Value) StringifyScalar() (string, bool) {
	switch v.kind {
	case KindNull:
		return "", true
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindString:
		return v.s, true
	case KindNumber:
		return FormatNumber(v.n), true
	}
	return "", false
}

// FormatNumber renders a float the way program text does: integral values
// have no fractional part.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// GoString renders a debugging representation; secret payloads are
// replaced with a placeholder so they cannot leak through logs.
func (v Value) GoString() string {
	if v.secret {
		return "[secret]"
	}
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		parts := make([]string, len(v.obj))
		for i, f := range v.obj {
			parts[i] = fmt.Sprintf("%s: %s", f.Key, f.Value.GoString())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindResource:
		return fmt.Sprintf("resource(%s)", v.res.Name)
	case KindAsset:
		return fmt.Sprintf("%s(%s)", v.asset.Constructor, v.asset.Source)
	case KindArchive:
		return fmt.Sprintf("%s(%s)", v.archive.Constructor, v.archive.Source)
	case KindUnknown:
		return "[unknown]"
	}
	return "[invalid]"
}
