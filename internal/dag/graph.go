package dag

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/bind"
)

// NodeState tracks a node through scheduling. Transitions are one-way:
// Pending -> Queued -> Running -> Done|Failed, or Pending -> Skipped.
type NodeState int32

const (
	Pending NodeState = iota
	Queued
	Running
	Done
	Failed
	Skipped
)

func (s NodeState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Node is one schedulable declaration.
type Node struct {
	Name   string
	Symbol *bind.Symbol
	// Order is the declaration index; the scheduler uses it as the
	// deterministic tie-break.
	Order int

	// Deps and Dependents are deduplicated adjacency maps. dependents is
	// the Order-sorted view the scheduler iterates.
	Deps       map[string]*Node
	Dependents map[string]*Node
	dependents []*Node

	depCount atomic.Int32
	state    atomic.Int32

	// Err holds the failure or skip cause once the node reaches Failed or
	// Skipped. Written by exactly one scheduler goroutine.
	Err error
}

// State returns the node's current scheduling state.
func (n *Node) State() NodeState { return NodeState(n.state.Load()) }

// transition atomically moves the node from one state to another and
// reports whether this call won the transition.
func (n *Node) transition(from, to NodeState) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// Graph is the dependency graph over a program's declarations.
type Graph struct {
	Nodes map[string]*Node
	// Order holds node names in declaration order.
	Order []string
}

// Build constructs the graph for a bound program: one node per config,
// variable, resource, and output declaration, with edges for every implicit
// reference and explicit option. Component definitions are templates, not
// instances, and get no node.
func Build(bound *bind.BoundProgram) (*Graph, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	g := &Graph{Nodes: map[string]*Node{}}

	for _, name := range bound.Order {
		sym := bound.Symbols[name]
		if sym.Kind == bind.KindComponent {
			continue
		}
		node := &Node{
			Name:       name,
			Symbol:     sym,
			Order:      len(g.Order),
			Deps:       map[string]*Node{},
			Dependents: map[string]*Node{},
		}
		g.Nodes[name] = node
		g.Order = append(g.Order, name)
	}

	// Default providers come first: any resource without an explicit
	// provider option implicitly depends on every default provider.
	var defaultProviders []*Node
	for _, name := range g.Order {
		node := g.Nodes[name]
		if node.Symbol.Kind == bind.KindResource && node.Symbol.Resource.DefaultProvider {
			defaultProviders = append(defaultProviders, node)
		}
	}

	for _, name := range g.Order {
		node := g.Nodes[name]
		addRef := func(e ast.Expr) {
			if e == nil {
				return
			}
			for _, access := range ast.References(e) {
				g.addEdge(access.RootName(), node, &diags)
			}
		}

		switch node.Symbol.Kind {
		case bind.KindConfig:
			addRef(node.Symbol.Config.Default)
			addRef(node.Symbol.Config.Value)
		case bind.KindVariable:
			addRef(node.Symbol.Variable.Value)
		case bind.KindOutput:
			addRef(node.Symbol.Output.Value)
		case bind.KindResource:
			r := node.Symbol.Resource
			bind.VisitResourceExprs(r, addRef)
			if r.Options == nil || r.Options.Provider == nil {
				for _, provider := range defaultProviders {
					if provider != node {
						g.link(provider, node)
					}
				}
			}
		}
	}

	for _, name := range g.Order {
		node := g.Nodes[name]
		node.dependents = make([]*Node, 0, len(node.Dependents))
		for _, dep := range node.Dependents {
			node.dependents = append(node.dependents, dep)
		}
		sort.Slice(node.dependents, func(i, j int) bool {
			return node.dependents[i].Order < node.dependents[j].Order
		})
		node.depCount.Store(int32(len(node.Deps)))
	}

	if cycle := g.findCycle(); cycle != nil {
		err := &CycleError{Cycle: cycle}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "dependency cycle",
			Detail:   err.Error(),
			Subject:  rangePtr(g.Nodes[cycle[0]].Symbol.DefRange),
			Extra:    err,
		})
	}

	return g, diags
}

// addEdge records that `to` depends on the declaration named root. Ambient
// references and names the binder already rejected are ignored.
func (g *Graph) addEdge(root string, to *Node, diags *hcl.Diagnostics) {
	if root == bind.AmbientName {
		return
	}
	from, ok := g.Nodes[root]
	if !ok {
		return
	}
	if from == to {
		err := &CycleError{Cycle: []string{to.Name, to.Name}}
		*diags = append(*diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "dependency cycle",
			Detail:   fmt.Sprintf("'%s' depends on itself", to.Name),
			Subject:  rangePtr(to.Symbol.DefRange),
			Extra:    err,
		})
		return
	}
	g.link(from, to)
}

func (g *Graph) link(from, to *Node) {
	if _, ok := to.Deps[from.Name]; ok {
		return
	}
	to.Deps[from.Name] = from
	from.Dependents[to.Name] = to
}

func rangePtr(r hcl.Range) *hcl.Range { return &r }
