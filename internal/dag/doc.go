// Package dag builds the dependency graph of a bound program and executes
// it with a bounded worker pool. A node failure skips its transitive
// dependents; unrelated subgraphs keep running to completion.
package dag
