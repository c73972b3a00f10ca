package dag

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/yamlstack/internal/ctxlog"
)

// RunFunc evaluates one node. It is called from scheduler workers and must
// be safe for concurrent use across distinct nodes.
type RunFunc func(ctx context.Context, node *Node) error

// Outcome summarizes one scheduler run.
type Outcome struct {
	// Failed maps node names to the error that failed them.
	Failed map[string]error
	// Skipped maps node names to the upstream node whose failure caused
	// the skip; the empty string means the run context was canceled.
	Skipped map[string]string
}

// OK reports whether every node completed.
func (o *Outcome) OK() bool { return len(o.Failed) == 0 && len(o.Skipped) == 0 }

// Executor schedules a graph onto a bounded worker pool. A node runs once
// all of its dependencies are Done; when a node fails, its transitive
// dependents are skipped but every other node still runs.
type Executor struct {
	graph      *Graph
	numWorkers int
	run        RunFunc

	wg sync.WaitGroup
}

// NewExecutor creates an executor for the graph. workers below one is
// treated as one.
func NewExecutor(graph *Graph, workers int, run RunFunc) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{graph: graph, numWorkers: workers, run: run}
}

// Run executes the whole graph and blocks until every node reached a
// terminal state. Context cancellation skips nodes that have not started;
// running nodes observe the cancellation through their own ctx.
func (e *Executor) Run(ctx context.Context) *Outcome {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.graph.Nodes))
	e.wg.Add(len(e.graph.Nodes))

	rootCount := 0
	for _, name := range e.graph.Order {
		node := e.graph.Nodes[name]
		if node.depCount.Load() == 0 && node.transition(Pending, Queued) {
			readyChan <- node
			rootCount++
		}
	}
	logger.Debug("scheduler initialized", "nodes", len(e.graph.Nodes), "roots", rootCount, "workers", e.numWorkers)

	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)

	outcome := &Outcome{Failed: map[string]error{}, Skipped: map[string]string{}}
	for _, name := range e.graph.Order {
		node := e.graph.Nodes[name]
		switch node.State() {
		case Failed:
			outcome.Failed[name] = node.Err
		case Skipped:
			if cause, ok := node.Err.(*skipError); ok {
				outcome.Skipped[name] = cause.upstream
			} else {
				outcome.Skipped[name] = ""
			}
		}
	}
	return outcome
}

// skipError marks a node skipped because of an upstream failure.
type skipError struct {
	upstream string
}

func (e *skipError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s'", e.upstream)
}

func (e *Executor) worker(ctx context.Context, readyChan chan *Node, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)

	for node := range readyChan {
		if ctx.Err() != nil {
			if node.transition(Queued, Skipped) {
				node.Err = ctx.Err()
				e.skipDependents(ctx, node)
				e.wg.Done()
			}
			continue
		}

		if !node.transition(Queued, Running) {
			continue
		}

		nodeLogger := logger.With("node", node.Name, "kind", node.Symbol.Kind)
		nodeLogger.Debug("node started")

		if err := e.run(ctx, node); err != nil {
			nodeLogger.Error("node failed", "error", err)
			node.Err = err
			node.state.Store(int32(Failed))
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		nodeLogger.Debug("node completed")
		node.state.Store(int32(Done))

		for _, dependent := range node.dependents {
			if dependent.depCount.Add(-1) == 0 && dependent.transition(Pending, Queued) {
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// skipDependents transitively skips everything downstream of a failed or
// skipped node. A dependent of a failed node can never reach Queued (its
// dependency count never drains), so the Pending->Skipped transition races
// only with other skip paths; whichever wins accounts for the node.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.dependents {
		if dependent.transition(Pending, Skipped) {
			logger.Warn("skipping node due to upstream failure", "node", dependent.Name, "upstream", node.Name)
			dependent.Err = &skipError{upstream: node.Name}
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		}
	}
}
