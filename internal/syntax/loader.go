package syntax

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"
)

// Document is the structural tree produced by Load. The root node is the
// top-level mapping of the program document.
type Document struct {
	Filename string
	Root     *yaml.Node
}

// ExpansionLimitError reports that alias/anchor expansion would exceed the
// configured ceiling. It is raised during the bounded traversal, before the
// expansion is materialized.
type ExpansionLimitError struct {
	// Nodes is the effective node count at the point the guard fired.
	Nodes int
	// Depth is the flattened traversal depth at the point the guard fired.
	Depth int
	// NodeLimit and DepthLimit are the configured ceilings.
	NodeLimit  int
	DepthLimit int
}

func (e *ExpansionLimitError) Error() string {
	if e.Depth > e.DepthLimit {
		return fmt.Sprintf("document expansion exceeds the depth limit (%d > %d)", e.Depth, e.DepthLimit)
	}
	return fmt.Sprintf("document expansion exceeds the node limit (%d > %d)", e.Nodes, e.NodeLimit)
}

// Limits bounds the expansion guard. Zero values disable the corresponding
// check, which is only appropriate in tests.
type Limits struct {
	MaxNodes int
	MaxDepth int
}

// yamlLineRe extracts the line number from the error strings yaml.v3
// produces ("yaml: line 3: ...").
var yamlLineRe = regexp.MustCompile(`yaml: line (\d+):`)

// Load parses src into a structural tree. Malformed syntax produces a single
// error diagnostic with the best source position the parser can recover;
// no partial tree is returned in that case.
func Load(src []byte, filename string, limits Limits) (*Document, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		subject := hcl.Range{Filename: filename, Start: hcl.InitialPos, End: hcl.InitialPos}
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			if line, convErr := strconv.Atoi(m[1]); convErr == nil {
				subject.Start = hcl.Pos{Line: line, Column: 1}
				subject.End = subject.Start
			}
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "invalid document syntax",
			Detail:   err.Error(),
			Subject:  &subject,
		})
		return nil, diags
	}

	// An empty document decodes to a zero node.
	if root.Kind == 0 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "empty document",
			Detail:   "a program document must contain a top-level mapping",
			Subject:  &hcl.Range{Filename: filename, Start: hcl.InitialPos, End: hcl.InitialPos},
		})
		return nil, diags
	}

	doc := &Document{Filename: filename, Root: unwrapDocument(&root)}

	if err := checkExpansion(doc.Root, limits); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "expansion limit exceeded",
			Detail:   err.Error(),
			Subject:  rangePtr(Range(filename, doc.Root)),
			Extra:    err,
		})
		return nil, diags
	}

	return doc, diags
}

// unwrapDocument steps through the synthetic DocumentNode wrapper yaml.v3
// places at the root.
func unwrapDocument(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

// checkExpansion walks the structural tree following alias edges, counting
// the node total and depth the flattened document would have. The walk is
// iterative and aborts the moment either ceiling is crossed, so the cost of
// a hostile document is bounded by the ceiling, not by the document.
func checkExpansion(root *yaml.Node, limits Limits) *ExpansionLimitError {
	type frame struct {
		node  *yaml.Node
		depth int
	}

	count := 0
	stack := []frame{{root, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count++
		if limits.MaxNodes > 0 && count > limits.MaxNodes {
			return &ExpansionLimitError{Nodes: count, Depth: f.depth, NodeLimit: limits.MaxNodes, DepthLimit: limits.MaxDepth}
		}
		if limits.MaxDepth > 0 && f.depth > limits.MaxDepth {
			return &ExpansionLimitError{Nodes: count, Depth: f.depth, NodeLimit: limits.MaxNodes, DepthLimit: limits.MaxDepth}
		}

		if f.node.Kind == yaml.AliasNode && f.node.Alias != nil {
			// Re-enter the anchored subtree: every alias occurrence costs
			// the full flattened size of its target.
			stack = append(stack, frame{f.node.Alias, f.depth})
			continue
		}
		for _, child := range f.node.Content {
			stack = append(stack, frame{child, f.depth + 1})
		}
	}
	return nil
}

// Resolve follows alias edges to the anchored node. Callers may rely on the
// result never being an alias. Safe only after Load's expansion guard ran.
func Resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// Range converts a node's position into an hcl.Range. The end position is
// approximated from the scalar length; yaml.v3 does not track end offsets.
func Range(filename string, n *yaml.Node) hcl.Range {
	if n == nil {
		return hcl.Range{Filename: filename, Start: hcl.InitialPos, End: hcl.InitialPos}
	}
	start := hcl.Pos{Line: n.Line, Column: n.Column}
	end := start
	if n.Kind == yaml.ScalarNode {
		end.Column += len(n.Value)
	}
	return hcl.Range{Filename: filename, Start: start, End: end}
}

func rangePtr(r hcl.Range) *hcl.Range { return &r }

// EachPair invokes fn for every key/value pair of a mapping node, in
// document order. Alias keys and values are resolved first. Returns false
// without iterating when n is not a mapping.
func EachPair(n *yaml.Node, fn func(key, value *yaml.Node)) bool {
	n = Resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(Resolve(n.Content[i]), n.Content[i+1])
	}
	return true
}
