package ast

import "github.com/hashicorp/hcl/v2"

// Expr is the closed interface over all expression variants. New variants
// are added here and nowhere else; consumers switch exhaustively.
type Expr interface {
	Range() hcl.Range
	exprNode()
}

// exprMeta carries the source range shared by every variant.
type exprMeta struct {
	SrcRange hcl.Range
}

func (m exprMeta) Range() hcl.Range { return m.SrcRange }

// Meta constructs expression metadata for a source range. Exposed for the
// builder and for synthetic nodes in tests.
func Meta(r hcl.Range) exprMeta { return exprMeta{SrcRange: r} }

// NullExpr is the null literal.
type NullExpr struct {
	exprMeta
}

// BoolExpr is a boolean literal.
type BoolExpr struct {
	exprMeta
	Value bool
}

// NumberExpr is a numeric literal. All numbers are float64, matching the
// document format's number model.
type NumberExpr struct {
	exprMeta
	Value float64
}

// StringExpr is a plain string literal with no interpolation.
type StringExpr struct {
	exprMeta
	Value string
}

// InterpolateExpr is a string containing one or more ${...} fragments.
type InterpolateExpr struct {
	exprMeta
	Parts []InterpolationPart
}

// SymbolExpr is a bare ${name.prop} reference: an interpolation that
// consists of exactly one property access and no literal text.
type SymbolExpr struct {
	exprMeta
	Access *PropertyAccess
}

// ListExpr is an ordered sequence of expressions.
type ListExpr struct {
	exprMeta
	Items []Expr
}

// ObjectEntry is a single key/value pair of an ObjectExpr.
type ObjectEntry struct {
	Key   Expr
	Value Expr
}

// ObjectExpr is an ordered mapping of expressions.
type ObjectExpr struct {
	exprMeta
	Entries []ObjectEntry
}

// BuiltinFunc names the single-argument builtins that share the CallExpr
// shape.
type BuiltinFunc string

const (
	FuncToJSON     BuiltinFunc = "fn::toJSON"
	FuncToBase64   BuiltinFunc = "fn::toBase64"
	FuncFromBase64 BuiltinFunc = "fn::fromBase64"
	FuncSecret     BuiltinFunc = "fn::secret"
	FuncReadFile   BuiltinFunc = "fn::readFile"
	FuncAbs        BuiltinFunc = "fn::abs"
	FuncFloor      BuiltinFunc = "fn::floor"
	FuncCeil       BuiltinFunc = "fn::ceil"
	FuncMax        BuiltinFunc = "fn::max"
	FuncMin        BuiltinFunc = "fn::min"
	FuncStringLen  BuiltinFunc = "fn::stringLen"
)

// CallExpr is a single-argument builtin invocation.
type CallExpr struct {
	exprMeta
	Func BuiltinFunc
	Arg  Expr
}

// JoinExpr is fn::join: [delimiter, values].
type JoinExpr struct {
	exprMeta
	Delimiter Expr
	Values    Expr
}

// SelectExpr is fn::select: [index, values].
type SelectExpr struct {
	exprMeta
	Index  Expr
	Values Expr
}

// SplitExpr is fn::split: [delimiter, source].
type SplitExpr struct {
	exprMeta
	Delimiter Expr
	Source    Expr
}

// SubstringExpr is fn::substring: [source, start, length].
type SubstringExpr struct {
	exprMeta
	Source Expr
	Start  Expr
	Length Expr
}

// InvokeOptions are the call options accepted by fn::invoke.
type InvokeOptions struct {
	Parent            Expr
	Provider          Expr
	DependsOn         Expr
	Version           string
	PluginDownloadURL string
}

// InvokeExpr is fn::invoke: a call into the external provider layer.
type InvokeExpr struct {
	exprMeta
	Token    string
	CallArgs Expr
	CallOpts InvokeOptions
	// Return selects a single property of the invoke result.
	Return string
}

// AssetKind distinguishes the asset constructors.
type AssetKind string

const (
	StringAsset AssetKind = "fn::stringAsset"
	FileAsset   AssetKind = "fn::fileAsset"
	RemoteAsset AssetKind = "fn::remoteAsset"
)

// AssetExpr constructs an asset from a string, file path, or URL.
type AssetExpr struct {
	exprMeta
	Kind   AssetKind
	Source Expr
}

// ArchiveKind distinguishes the archive constructors.
type ArchiveKind string

const (
	FileArchive   ArchiveKind = "fn::fileArchive"
	RemoteArchive ArchiveKind = "fn::remoteArchive"
)

// ArchiveExpr constructs an archive from a file path or URL.
type ArchiveExpr struct {
	exprMeta
	Kind   ArchiveKind
	Source Expr
}

// AssetArchiveEntry is a named member of an fn::assetArchive.
type AssetArchiveEntry struct {
	Key   string
	Value Expr
}

// AssetArchiveExpr is fn::assetArchive: an archive assembled from named
// assets and archives.
type AssetArchiveExpr struct {
	exprMeta
	Entries []AssetArchiveEntry
}

// TemplateExpr is a block-style template: literal text interleaved with
// expression interpolation and restricted conditionals. Defined in
// template.go alongside its node types.
type TemplateExpr struct {
	exprMeta
	Nodes []TemplateNode
}

func (*NullExpr) exprNode()         {}
func (*BoolExpr) exprNode()         {}
func (*NumberExpr) exprNode()       {}
func (*StringExpr) exprNode()       {}
func (*InterpolateExpr) exprNode()  {}
func (*SymbolExpr) exprNode()       {}
func (*ListExpr) exprNode()         {}
func (*ObjectExpr) exprNode()       {}
func (*CallExpr) exprNode()         {}
func (*JoinExpr) exprNode()         {}
func (*SelectExpr) exprNode()       {}
func (*SplitExpr) exprNode()        {}
func (*SubstringExpr) exprNode()    {}
func (*InvokeExpr) exprNode()       {}
func (*AssetExpr) exprNode()        {}
func (*ArchiveExpr) exprNode()      {}
func (*AssetArchiveExpr) exprNode() {}
func (*TemplateExpr) exprNode()     {}
