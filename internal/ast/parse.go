package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"

	"github.com/vk/yamlstack/internal/syntax"
)

// Parser turns structural nodes into expressions. It is stateless apart
// from its configuration and safe for reuse across declarations.
type Parser struct {
	Filename string
	// MaxDepth bounds structural nesting of a single expression tree.
	MaxDepth int
}

// NewParser returns a Parser for the given document.
func NewParser(filename string, maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &Parser{Filename: filename, MaxDepth: maxDepth}
}

// ParseExpr parses a structural node into an expression. Malformed input
// yields a NullExpr plus diagnostics; callers can keep building the rest of
// the declaration.
func (p *Parser) ParseExpr(n *yaml.Node, diags *hcl.Diagnostics) Expr {
	return p.parseExpr(n, 0, diags)
}

func (p *Parser) parseExpr(n *yaml.Node, depth int, diags *hcl.Diagnostics) Expr {
	n = syntax.Resolve(n)
	rng := syntax.Range(p.Filename, n)
	meta := Meta(rng)

	if depth > p.MaxDepth {
		*diags = append(*diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "invalid expression syntax",
			Detail:   fmt.Sprintf("expression nesting exceeds the maximum depth of %d", p.MaxDepth),
			Subject:  &rng,
		})
		return &NullExpr{exprMeta: meta}
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return p.parseScalar(n, meta, diags)

	case yaml.SequenceNode:
		items := make([]Expr, 0, len(n.Content))
		for _, item := range n.Content {
			items = append(items, p.parseExpr(item, depth+1, diags))
		}
		return &ListExpr{exprMeta: meta, Items: items}

	case yaml.MappingNode:
		if len(n.Content) == 2 {
			key := syntax.Resolve(n.Content[0])
			if key.Kind == yaml.ScalarNode && strings.HasPrefix(strings.ToLower(key.Value), "fn::") {
				return p.parseBuiltin(key, n.Content[1], meta, depth, diags)
			}
		}
		entries := make([]ObjectEntry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			entries = append(entries, ObjectEntry{
				Key:   p.parseExpr(n.Content[i], depth+1, diags),
				Value: p.parseExpr(n.Content[i+1], depth+1, diags),
			})
		}
		return &ObjectExpr{exprMeta: meta, Entries: entries}

	default:
		return &NullExpr{exprMeta: meta}
	}
}

func (p *Parser) parseScalar(n *yaml.Node, meta exprMeta, diags *hcl.Diagnostics) Expr {
	switch n.ShortTag() {
	case "!!null":
		return &NullExpr{exprMeta: meta}
	case "!!bool":
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			return &StringExpr{exprMeta: meta, Value: n.Value}
		}
		return &BoolExpr{exprMeta: meta, Value: v}
	case "!!int", "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return &StringExpr{exprMeta: meta, Value: n.Value}
		}
		return &NumberExpr{exprMeta: meta, Value: v}
	}
	return p.parseStringExpr(n.Value, meta, diags)
}

// parseStringExpr parses a string scalar, detecting template blocks and
// interpolation.
func (p *Parser) parseStringExpr(s string, meta exprMeta, diags *hcl.Diagnostics) Expr {
	if HasTemplateSyntax(s) {
		return ParseTemplate(s, meta.SrcRange, p.MaxDepth, diags)
	}
	if !HasInterpolations(s) && !strings.Contains(s, "$$") {
		return &StringExpr{exprMeta: meta, Value: s}
	}

	parts := ParseInterpolation(s, meta.SrcRange, diags)
	if len(parts) == 0 {
		return &StringExpr{exprMeta: meta, Value: s}
	}
	if len(parts) == 1 {
		if parts[0].Value == nil {
			// All interpolations were escaped.
			return &StringExpr{exprMeta: meta, Value: parts[0].Text}
		}
		if parts[0].Text == "" {
			return &SymbolExpr{exprMeta: meta, Access: parts[0].Value}
		}
	}
	return &InterpolateExpr{exprMeta: meta, Parts: parts}
}

// canonicalBuiltins maps the lowercased builtin key to its canonical
// spelling. Miscased keys parse with a warning.
var canonicalBuiltins = map[string]string{
	"fn::invoke":        "fn::invoke",
	"fn::join":          "fn::join",
	"fn::select":        "fn::select",
	"fn::split":         "fn::split",
	"fn::tojson":        "fn::toJSON",
	"fn::tobase64":      "fn::toBase64",
	"fn::frombase64":    "fn::fromBase64",
	"fn::secret":        "fn::secret",
	"fn::readfile":      "fn::readFile",
	"fn::stringasset":   "fn::stringAsset",
	"fn::fileasset":     "fn::fileAsset",
	"fn::remoteasset":   "fn::remoteAsset",
	"fn::filearchive":   "fn::fileArchive",
	"fn::remotearchive": "fn::remoteArchive",
	"fn::assetarchive":  "fn::assetArchive",
	"fn::abs":           "fn::abs",
	"fn::floor":         "fn::floor",
	"fn::ceil":          "fn::ceil",
	"fn::max":           "fn::max",
	"fn::min":           "fn::min",
	"fn::stringlen":     "fn::stringLen",
	"fn::substring":     "fn::substring",
}

// unaryBuiltins maps canonical names to the CallExpr function constant.
var unaryBuiltins = map[string]BuiltinFunc{
	"fn::toJSON":     FuncToJSON,
	"fn::toBase64":   FuncToBase64,
	"fn::fromBase64": FuncFromBase64,
	"fn::secret":     FuncSecret,
	"fn::readFile":   FuncReadFile,
	"fn::abs":        FuncAbs,
	"fn::floor":      FuncFloor,
	"fn::ceil":       FuncCeil,
	"fn::max":        FuncMax,
	"fn::min":        FuncMin,
	"fn::stringLen":  FuncStringLen,
}

func (p *Parser) parseBuiltin(key, value *yaml.Node, meta exprMeta, depth int, diags *hcl.Diagnostics) Expr {
	lower := strings.ToLower(key.Value)
	keyRange := syntax.Range(p.Filename, key)

	if lower == "fn::stackreference" {
		*diags = append(*diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "fn::stackReference is not supported",
			Detail:   "use a 'pulumi:pulumi:StackReference' resource type instead",
			Subject:  &keyRange,
		})
		return &NullExpr{exprMeta: meta}
	}

	canonical, known := canonicalBuiltins[lower]
	if known {
		if key.Value != canonical {
			*diags = append(*diags, &hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "unexpected builtin casing",
				Detail:   fmt.Sprintf("'%s' should be written '%s'", key.Value, canonical),
				Subject:  &keyRange,
			})
		}
		return p.parseKnownBuiltin(canonical, value, meta, depth, diags)
	}

	// fn::pkg:module(:member)? is shorthand for fn::invoke.
	if token, ok := invokeShorthandToken(key.Value); ok {
		var callArgs Expr
		if syntax.Resolve(value).Kind == yaml.MappingNode {
			callArgs = p.parseExpr(value, depth+1, diags)
		}
		return &InvokeExpr{exprMeta: meta, Token: token, CallArgs: callArgs}
	}

	*diags = append(*diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "unknown builtin function",
		Detail:   fmt.Sprintf("'%s' is not a supported builtin; 'fn::' is a reserved prefix", key.Value),
		Subject:  &keyRange,
	})
	return &NullExpr{exprMeta: meta}
}

func (p *Parser) parseKnownBuiltin(canonical string, value *yaml.Node, meta exprMeta, depth int, diags *hcl.Diagnostics) Expr {
	if fn, ok := unaryBuiltins[canonical]; ok {
		return &CallExpr{exprMeta: meta, Func: fn, Arg: p.parseExpr(value, depth+1, diags)}
	}

	switch canonical {
	case "fn::invoke":
		return p.parseInvoke(value, meta, depth, diags)

	case "fn::join":
		if pair, ok := p.parsePair(value, canonical, depth, diags); ok {
			return &JoinExpr{exprMeta: meta, Delimiter: pair[0], Values: pair[1]}
		}
	case "fn::select":
		if pair, ok := p.parsePair(value, canonical, depth, diags); ok {
			return &SelectExpr{exprMeta: meta, Index: pair[0], Values: pair[1]}
		}
	case "fn::split":
		if pair, ok := p.parsePair(value, canonical, depth, diags); ok {
			return &SplitExpr{exprMeta: meta, Delimiter: pair[0], Source: pair[1]}
		}

	case "fn::substring":
		v := syntax.Resolve(value)
		if v.Kind == yaml.SequenceNode && len(v.Content) == 3 {
			return &SubstringExpr{
				exprMeta: meta,
				Source:   p.parseExpr(v.Content[0], depth+1, diags),
				Start:    p.parseExpr(v.Content[1], depth+1, diags),
				Length:   p.parseExpr(v.Content[2], depth+1, diags),
			}
		}
		p.argError(value, "the argument to fn::substring must be a three-valued list [source, start, length]", diags)

	case "fn::stringAsset":
		return &AssetExpr{exprMeta: meta, Kind: StringAsset, Source: p.parseExpr(value, depth+1, diags)}
	case "fn::fileAsset":
		return &AssetExpr{exprMeta: meta, Kind: FileAsset, Source: p.parseExpr(value, depth+1, diags)}
	case "fn::remoteAsset":
		return &AssetExpr{exprMeta: meta, Kind: RemoteAsset, Source: p.parseExpr(value, depth+1, diags)}
	case "fn::fileArchive":
		return &ArchiveExpr{exprMeta: meta, Kind: FileArchive, Source: p.parseExpr(value, depth+1, diags)}
	case "fn::remoteArchive":
		return &ArchiveExpr{exprMeta: meta, Kind: RemoteArchive, Source: p.parseExpr(value, depth+1, diags)}

	case "fn::assetArchive":
		v := syntax.Resolve(value)
		if v.Kind != yaml.MappingNode {
			p.argError(value, "the argument to fn::assetArchive must be an object", diags)
			break
		}
		var entries []AssetArchiveEntry
		for i := 0; i+1 < len(v.Content); i += 2 {
			k := syntax.Resolve(v.Content[i])
			if k.Kind != yaml.ScalarNode {
				p.argError(v.Content[i], "keys in fn::assetArchive arguments must be string literals", diags)
				continue
			}
			member := p.parseExpr(v.Content[i+1], depth+1, diags)
			switch member.(type) {
			case *AssetExpr, *ArchiveExpr, *AssetArchiveExpr:
			default:
				p.argError(v.Content[i+1], "value must be an asset or an archive", diags)
			}
			entries = append(entries, AssetArchiveEntry{Key: k.Value, Value: member})
		}
		return &AssetArchiveExpr{exprMeta: meta, Entries: entries}
	}

	return &NullExpr{exprMeta: meta}
}

// parsePair parses a two-valued list argument.
func (p *Parser) parsePair(value *yaml.Node, builtin string, depth int, diags *hcl.Diagnostics) ([2]Expr, bool) {
	v := syntax.Resolve(value)
	if v.Kind != yaml.SequenceNode || len(v.Content) != 2 {
		p.argError(value, fmt.Sprintf("the argument to %s must be a two-valued list", builtin), diags)
		return [2]Expr{}, false
	}
	return [2]Expr{
		p.parseExpr(v.Content[0], depth+1, diags),
		p.parseExpr(v.Content[1], depth+1, diags),
	}, true
}

func (p *Parser) parseInvoke(value *yaml.Node, meta exprMeta, depth int, diags *hcl.Diagnostics) Expr {
	v := syntax.Resolve(value)
	if v.Kind != yaml.MappingNode {
		p.argError(value, "the argument to fn::invoke must be an object containing 'function', 'arguments', 'options', and 'return'", diags)
		return &NullExpr{exprMeta: meta}
	}

	invoke := &InvokeExpr{exprMeta: meta}
	syntax.EachPair(v, func(key, val *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "function":
			invoke.Token = syntax.Resolve(val).Value
		case "arguments":
			invoke.CallArgs = p.parseExpr(val, depth+1, diags)
		case "return":
			invoke.Return = syntax.Resolve(val).Value
		case "options":
			syntax.EachPair(val, func(optKey, optVal *yaml.Node) {
				switch strings.ToLower(optKey.Value) {
				case "parent":
					invoke.CallOpts.Parent = p.parseExpr(optVal, depth+1, diags)
				case "provider":
					invoke.CallOpts.Provider = p.parseExpr(optVal, depth+1, diags)
				case "dependson":
					invoke.CallOpts.DependsOn = p.parseExpr(optVal, depth+1, diags)
				case "version":
					invoke.CallOpts.Version = syntax.Resolve(optVal).Value
				case "plugindownloadurl":
					invoke.CallOpts.PluginDownloadURL = syntax.Resolve(optVal).Value
				}
			})
		}
	})

	if invoke.Token == "" {
		p.argError(value, "missing function name ('function')", diags)
		return &NullExpr{exprMeta: meta}
	}
	return invoke
}

// invokeShorthandToken recognizes fn::pkg:module(:member)? and returns the
// function token with the fn:: prefix stripped.
func invokeShorthandToken(key string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(key), "fn::") {
		return "", false
	}
	rest := key[len("fn::"):]
	segments := strings.Split(rest, ":")
	if len(segments) != 2 && len(segments) != 3 {
		return "", false
	}
	for _, s := range segments {
		if s == "" {
			return "", false
		}
	}
	return rest, true
}

func (p *Parser) argError(n *yaml.Node, msg string, diags *hcl.Diagnostics) {
	rng := syntax.Range(p.Filename, syntax.Resolve(n))
	*diags = append(*diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "invalid builtin arguments",
		Detail:   msg,
		Subject:  &rng,
	})
}
