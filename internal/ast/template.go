package ast

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// TemplateNode is one element of a TemplateExpr body.
type TemplateNode interface {
	templateNode()
}

// TemplateLiteral is a run of literal text.
type TemplateLiteral struct {
	Text string
}

// TemplateInterp is a {{ expr }} interpolation.
type TemplateInterp struct {
	Value *PropertyAccess
}

// TemplateIf is the restricted conditional construct:
//
//	{% if cond %} ... {% else %} ... {% endif %}
//
// The condition is a property access, optionally negated with `not`.
type TemplateIf struct {
	Cond    *PropertyAccess
	Negated bool
	Then    []TemplateNode
	Else    []TemplateNode
}

func (TemplateLiteral) templateNode() {}
func (TemplateInterp) templateNode()  {}
func (*TemplateIf) templateNode()     {}

// HasTemplateSyntax reports whether s contains a {% ... %} control marker.
func HasTemplateSyntax(s string) bool {
	return strings.Contains(s, "{%")
}

// templateFrame tracks one open {% if %} block while parsing.
type templateFrame struct {
	ifNode *TemplateIf
	inElse bool
}

// ParseTemplate parses a block-style template into a single TemplateExpr.
// Nesting of conditionals is bounded by maxDepth; the parser uses an
// explicit frame stack, never recursion, so hostile input cannot grow the
// call stack.
func ParseTemplate(input string, rng hcl.Range, maxDepth int, diags *hcl.Diagnostics) *TemplateExpr {
	root := []TemplateNode{}
	var stack []templateFrame

	// appendNode adds a node to the innermost open block.
	appendNode := func(n TemplateNode) {
		if len(stack) == 0 {
			root = append(root, n)
			return
		}
		top := &stack[len(stack)-1]
		if top.inElse {
			top.ifNode.Else = append(top.ifNode.Else, n)
		} else {
			top.ifNode.Then = append(top.ifNode.Then, n)
		}
	}

	rest := input
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 || open+1 >= len(rest) || (rest[open+1] != '{' && rest[open+1] != '%') {
			// No further markers; everything from here is literal.
			if open < 0 {
				appendNode(TemplateLiteral{Text: rest})
				rest = ""
			} else {
				appendNode(TemplateLiteral{Text: rest[:open+1]})
				rest = rest[open+1:]
			}
			continue
		}
		if open > 0 {
			appendNode(TemplateLiteral{Text: rest[:open]})
			rest = rest[open:]
		}

		switch rest[1] {
		case '{':
			close := strings.Index(rest, "}}")
			if close < 0 {
				appendSyntaxError(diags, rng, "missing closing '}}' in template interpolation")
				return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
			}
			inner := strings.TrimSpace(rest[2:close])
			access, ok := ParseFullPropertyAccess(inner, rng, diags)
			if ok {
				appendNode(TemplateInterp{Value: access})
			}
			rest = rest[close+2:]

		case '%':
			close := strings.Index(rest, "%}")
			if close < 0 {
				appendSyntaxError(diags, rng, "missing closing '%}' in template control block")
				return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
			}
			ctrl := strings.TrimSpace(rest[2:close])
			rest = rest[close+2:]

			switch {
			case strings.HasPrefix(ctrl, "if "):
				if len(stack) >= maxDepth {
					appendSyntaxError(diags, rng, "template conditional nesting too deep")
					return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
				}
				cond := strings.TrimSpace(strings.TrimPrefix(ctrl, "if "))
				negated := false
				if strings.HasPrefix(cond, "not ") {
					negated = true
					cond = strings.TrimSpace(strings.TrimPrefix(cond, "not "))
				}
				access, ok := ParseFullPropertyAccess(cond, rng, diags)
				if !ok {
					return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
				}
				node := &TemplateIf{Cond: access, Negated: negated}
				appendNode(node)
				stack = append(stack, templateFrame{ifNode: node})

			case ctrl == "else":
				if len(stack) == 0 || stack[len(stack)-1].inElse {
					appendSyntaxError(diags, rng, "'{% else %}' without a matching '{% if %}'")
					return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
				}
				stack[len(stack)-1].inElse = true

			case ctrl == "endif":
				if len(stack) == 0 {
					appendSyntaxError(diags, rng, "'{% endif %}' without a matching '{% if %}'")
					return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
				}
				stack = stack[:len(stack)-1]

			default:
				appendSyntaxError(diags, rng, "unsupported template control block '{% "+ctrl+" %}'")
				return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
			}
		}
	}

	if len(stack) > 0 {
		appendSyntaxError(diags, rng, "unterminated '{% if %}' block")
	}
	return &TemplateExpr{exprMeta: Meta(rng), Nodes: root}
}
