package ast

// Walk visits e and every sub-expression in source order. fn returning
// false prunes the subtree.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch t := e.(type) {
	case *ListExpr:
		for _, item := range t.Items {
			Walk(item, fn)
		}
	case *ObjectExpr:
		for _, entry := range t.Entries {
			Walk(entry.Key, fn)
			Walk(entry.Value, fn)
		}
	case *CallExpr:
		Walk(t.Arg, fn)
	case *JoinExpr:
		Walk(t.Delimiter, fn)
		Walk(t.Values, fn)
	case *SelectExpr:
		Walk(t.Index, fn)
		Walk(t.Values, fn)
	case *SplitExpr:
		Walk(t.Delimiter, fn)
		Walk(t.Source, fn)
	case *SubstringExpr:
		Walk(t.Source, fn)
		Walk(t.Start, fn)
		Walk(t.Length, fn)
	case *InvokeExpr:
		Walk(t.CallArgs, fn)
		Walk(t.CallOpts.Parent, fn)
		Walk(t.CallOpts.Provider, fn)
		Walk(t.CallOpts.DependsOn, fn)
	case *AssetExpr:
		Walk(t.Source, fn)
	case *ArchiveExpr:
		Walk(t.Source, fn)
	case *AssetArchiveExpr:
		for _, entry := range t.Entries {
			Walk(entry.Value, fn)
		}
	}
}

// References collects every property access reachable from e, including
// interpolation fragments and template bodies, in source order.
func References(e Expr) []*PropertyAccess {
	var refs []*PropertyAccess
	Walk(e, func(sub Expr) bool {
		switch t := sub.(type) {
		case *SymbolExpr:
			refs = append(refs, t.Access)
		case *InterpolateExpr:
			for _, part := range t.Parts {
				if part.Value != nil {
					refs = append(refs, part.Value)
				}
			}
		case *TemplateExpr:
			refs = append(refs, templateRefs(t.Nodes)...)
		}
		return true
	})
	return refs
}

func templateRefs(nodes []TemplateNode) []*PropertyAccess {
	var refs []*PropertyAccess
	// Iterative traversal with an explicit stack; template nesting depth is
	// input-controlled.
	stack := make([][]TemplateNode, 0, 4)
	stack = append(stack, nodes)
	for len(stack) > 0 {
		batch := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range batch {
			switch t := n.(type) {
			case TemplateInterp:
				refs = append(refs, t.Value)
			case *TemplateIf:
				refs = append(refs, t.Cond)
				stack = append(stack, t.Then, t.Else)
			}
		}
	}
	return refs
}
