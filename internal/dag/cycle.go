package dag

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Cycle lists the node names along
// the cycle; the first name repeats at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current traversal path
	colorBlack        // fully explored, cycle-free
)

// findCycle runs a three-color depth-first search over the dependency
// edges and returns the first cycle found as a closed path, or nil.
// Traversal follows declaration order on both the roots and the adjacency
// lists, so the reported cycle is deterministic for a given program.
func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.Nodes))
	var path []string

	var visit func(n *Node) []string
	visit = func(n *Node) []string {
		color[n.Name] = colorGray
		path = append(path, n.Name)

		for _, next := range n.dependents {
			switch color[next.Name] {
			case colorWhite:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			case colorGray:
				// Close the loop: everything on the path from next's first
				// appearance is part of the cycle.
				for i, name := range path {
					if name == next.Name {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, next.Name)
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[n.Name] = colorBlack
		return nil
	}

	for _, name := range g.Order {
		if color[name] == colorWhite {
			if cycle := visit(g.Nodes[name]); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
