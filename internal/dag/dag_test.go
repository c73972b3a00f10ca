package dag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/yamlstack/internal/bind"
	"github.com/vk/yamlstack/internal/builder"
	"github.com/vk/yamlstack/internal/syntax"
)

func graphFromSource(t *testing.T, src string) (*Graph, error) {
	t.Helper()
	doc, diags := syntax.Load([]byte(src), "test.yaml", syntax.Limits{})
	require.False(t, diags.HasErrors(), "load: %v", diags)
	program, diags := builder.Build(doc, 0)
	require.False(t, diags.HasErrors(), "build: %v", diags)
	bound, diags := bind.Bind(program, bind.Options{})
	require.False(t, diags.HasErrors(), "bind: %v", diags)

	g, diags := Build(bound)
	if diags.HasErrors() {
		return g, diags[0].Extra.(error)
	}
	return g, nil
}

func TestGraphBuild(t *testing.T) {
	t.Run("implicit references become edges", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
outputs:
  c: ${b}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, g.Order)
		assert.Contains(t, g.Nodes["b"].Deps, "a")
		assert.Contains(t, g.Nodes["c"].Deps, "b")
		assert.Contains(t, g.Nodes["a"].Dependents, "b")
		assert.Equal(t, int32(0), g.Nodes["a"].depCount.Load())
		assert.Equal(t, int32(1), g.Nodes["b"].depCount.Load())
	})

	t.Run("dependsOn creates an edge", func(t *testing.T) {
		src := `
resources:
  first:
    type: custom:mod:Thing
  second:
    type: custom:mod:Thing
    options:
      dependsOn:
        - ${first}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Contains(t, g.Nodes["second"].Deps, "first")
	})

	t.Run("resources depend on default providers", func(t *testing.T) {
		src := `
resources:
  awsProv:
    type: pulumi:providers:aws
    defaultProvider: true
  bucket:
    type: custom:mod:Thing
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Contains(t, g.Nodes["bucket"].Deps, "awsProv")
	})

	t.Run("an explicit provider suppresses the default edge", func(t *testing.T) {
		src := `
resources:
  defaultProv:
    type: pulumi:providers:aws
    defaultProvider: true
  otherProv:
    type: pulumi:providers:aws
  bucket:
    type: custom:mod:Thing
    options:
      provider: ${otherProv}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.NotContains(t, g.Nodes["bucket"].Deps, "defaultProv")
		assert.Contains(t, g.Nodes["bucket"].Deps, "otherProv")
	})

	t.Run("ambient references create no edges", func(t *testing.T) {
		src := "outputs:\n  proj: ${pulumi.project}\n"
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Empty(t, g.Nodes["proj"].Deps)
	})

	t.Run("component definitions get no node", func(t *testing.T) {
		src := `
variables:
  v: 1
components:
  comp:
    inputs:
      x: 1
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Equal(t, []string{"v"}, g.Order)
	})

	t.Run("duplicate edges are deduplicated", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}-${a}-${a}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)
		assert.Len(t, g.Nodes["b"].Deps, 1)
		assert.Equal(t, int32(1), g.Nodes["b"].depCount.Load())
	})
}

func TestGraphCycles(t *testing.T) {
	t.Run("a self reference is rejected", func(t *testing.T) {
		src := "variables:\n  a: ${a}\n"
		_, err := graphFromSource(t, src)
		require.Error(t, err)

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "a"}, cycleErr.Cycle)
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		src := "variables:\n  a: ${b}\n  b: ${a}\n"
		_, err := graphFromSource(t, src)
		require.Error(t, err)

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, "dependency cycle: a -> b -> a", cycleErr.Error())
	})

	t.Run("longer cycle reports the full path", func(t *testing.T) {
		src := "variables:\n  a: ${c}\n  b: ${a}\n  c: ${b}\n"
		_, err := graphFromSource(t, src)
		require.Error(t, err)

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		require.Len(t, cycleErr.Cycle, 4)
		assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1])
	})

	t.Run("acyclic diamond passes", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
  c: ${a}
  d: ${b}-${c}
`
		_, err := graphFromSource(t, src)
		assert.NoError(t, err)
	})
}

// runRecorder is a RunFunc that records completion order and fails the
// nodes it is told to fail.
type runRecorder struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]error
}

func (r *runRecorder) run(_ context.Context, node *Node) error {
	r.mu.Lock()
	r.ran = append(r.ran, node.Name)
	r.mu.Unlock()
	if err, ok := r.fail[node.Name]; ok {
		return err
	}
	return nil
}

func (r *runRecorder) ranNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.ran...)
}

func TestExecutor(t *testing.T) {
	t.Run("all nodes complete on a clean run", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
outputs:
  c: ${b}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		rec := &runRecorder{}
		outcome := NewExecutor(g, 4, rec.run).Run(context.Background())

		assert.True(t, outcome.OK())
		assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.ranNames())
		assert.Equal(t, Done, g.Nodes["a"].State())
		assert.Equal(t, Done, g.Nodes["c"].State())
	})

	t.Run("dependencies run before dependents", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
  c: ${b}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		rec := &runRecorder{}
		outcome := NewExecutor(g, 8, rec.run).Run(context.Background())
		require.True(t, outcome.OK())
		assert.Equal(t, []string{"a", "b", "c"}, rec.ranNames())
	})

	t.Run("a failure skips transitive dependents only", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
  c: ${b}
  unrelated: 42
outputs:
  d: ${c}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		boom := errors.New("boom")
		rec := &runRecorder{fail: map[string]error{"b": boom}}
		outcome := NewExecutor(g, 4, rec.run).Run(context.Background())

		require.False(t, outcome.OK())
		assert.Equal(t, map[string]error{"b": boom}, outcome.Failed)
		assert.Equal(t, map[string]string{"c": "b", "d": "c"}, outcome.Skipped)

		// The unrelated node still ran.
		assert.Contains(t, rec.ranNames(), "unrelated")
		assert.NotContains(t, rec.ranNames(), "c")
		assert.NotContains(t, rec.ranNames(), "d")
		assert.Equal(t, Failed, g.Nodes["b"].State())
		assert.Equal(t, Skipped, g.Nodes["c"].State())
	})

	t.Run("a failed diamond arm skips the join once", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
  c: ${a}
  d: ${b}-${c}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		rec := &runRecorder{fail: map[string]error{"b": errors.New("boom")}}
		outcome := NewExecutor(g, 4, rec.run).Run(context.Background())

		require.False(t, outcome.OK())
		assert.Equal(t, "b", outcome.Skipped["d"])
		assert.NotContains(t, rec.ranNames(), "d")
	})

	t.Run("cancellation skips nodes that have not started", func(t *testing.T) {
		src := `
variables:
  a: 1
  b: ${a}
`
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rec := &runRecorder{}
		outcome := NewExecutor(g, 2, rec.run).Run(ctx)

		require.False(t, outcome.OK())
		assert.Empty(t, rec.ranNames())
		assert.Len(t, outcome.Skipped, 2)
	})

	t.Run("worker count below one is clamped", func(t *testing.T) {
		src := "variables:\n  a: 1\n"
		g, err := graphFromSource(t, src)
		require.NoError(t, err)

		rec := &runRecorder{}
		outcome := NewExecutor(g, 0, rec.run).Run(context.Background())
		assert.True(t, outcome.OK())
		assert.Equal(t, []string{"a"}, rec.ranNames())
	})
}
