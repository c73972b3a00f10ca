package syntax

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, diags := Load([]byte("name: demo\nresources:\n  bucket:\n    type: aws:s3:Bucket\n"), "test.yaml", Limits{})
		require.Empty(t, diags)
		require.NotNil(t, doc)
		assert.Equal(t, "test.yaml", doc.Filename)
		assert.Equal(t, yaml.MappingNode, doc.Root.Kind)
	})

	t.Run("syntax error carries the source line", func(t *testing.T) {
		src := "name: demo\nbad:\n\t- tabs are not indentation\n"
		doc, diags := Load([]byte(src), "test.yaml", Limits{})
		assert.Nil(t, doc)
		require.Len(t, diags, 1)
		assert.True(t, diags.HasErrors())
		assert.Equal(t, "invalid document syntax", diags[0].Summary)
		assert.Greater(t, diags[0].Subject.Start.Line, 1)
	})

	t.Run("empty document is rejected", func(t *testing.T) {
		doc, diags := Load([]byte(""), "test.yaml", Limits{})
		assert.Nil(t, doc)
		require.Len(t, diags, 1)
		assert.Equal(t, "empty document", diags[0].Summary)
	})

	t.Run("aliases within the limit load normally", func(t *testing.T) {
		src := "base: &b\n  a: 1\n  b: 2\nuses:\n  first: *b\n  second: *b\n"
		doc, diags := Load([]byte(src), "test.yaml", Limits{MaxNodes: 1000, MaxDepth: 20})
		require.Empty(t, diags)
		require.NotNil(t, doc)
	})

	t.Run("exponential alias expansion is rejected", func(t *testing.T) {
		// Each level references the previous one twice, so the flattened
		// node count doubles per level.
		var b strings.Builder
		b.WriteString("l0: &l0 [x, x]\n")
		b.WriteString("l1: &l1 [*l0, *l0]\n")
		b.WriteString("l2: &l2 [*l1, *l1]\n")
		b.WriteString("l3: &l3 [*l2, *l2]\n")
		b.WriteString("l4: &l4 [*l3, *l3]\n")
		b.WriteString("l5: &l5 [*l4, *l4]\n")
		b.WriteString("l6: &l6 [*l5, *l5]\n")
		b.WriteString("l7: &l7 [*l6, *l6]\n")
		b.WriteString("l8: &l8 [*l7, *l7]\n")
		b.WriteString("l9: &l9 [*l8, *l8]\n")

		doc, diags := Load([]byte(b.String()), "test.yaml", Limits{MaxNodes: 500, MaxDepth: 200})
		assert.Nil(t, doc)
		require.Len(t, diags, 1)
		assert.Equal(t, "expansion limit exceeded", diags[0].Summary)

		var limitErr *ExpansionLimitError
		require.True(t, errors.As(diags[0].Extra.(error), &limitErr))
		assert.Equal(t, 500, limitErr.NodeLimit)
		assert.Greater(t, limitErr.Nodes, limitErr.NodeLimit)
	})

	t.Run("depth limit", func(t *testing.T) {
		src := "a:\n b:\n  c:\n   d:\n    e: 1\n"
		doc, diags := Load([]byte(src), "test.yaml", Limits{MaxNodes: 1000, MaxDepth: 3})
		assert.Nil(t, doc)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Detail, "depth limit")
	})
}

func TestResolve(t *testing.T) {
	src := "anchor: &a hello\nref: *a\n"
	doc, diags := Load([]byte(src), "test.yaml", Limits{})
	require.Empty(t, diags)

	// Content layout: [anchor-key, anchor-val, ref-key, ref-val]
	refVal := doc.Root.Content[3]
	require.Equal(t, yaml.AliasNode, refVal.Kind)
	resolved := Resolve(refVal)
	assert.Equal(t, yaml.ScalarNode, resolved.Kind)
	assert.Equal(t, "hello", resolved.Value)
}

func TestEachPair(t *testing.T) {
	doc, diags := Load([]byte("a: 1\nb: 2\nc: 3\n"), "test.yaml", Limits{})
	require.Empty(t, diags)

	var keys []string
	ok := EachPair(doc.Root, func(key, value *yaml.Node) {
		keys = append(keys, key.Value)
	})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	ok = EachPair(doc.Root.Content[1], func(key, value *yaml.Node) {
		t.Fatal("scalar node must not iterate")
	})
	assert.False(t, ok)
}

func TestRange(t *testing.T) {
	doc, diags := Load([]byte("name: demo\n"), "test.yaml", Limits{})
	require.Empty(t, diags)

	r := Range("test.yaml", doc.Root.Content[1])
	assert.Equal(t, "test.yaml", r.Filename)
	assert.Equal(t, 1, r.Start.Line)
	assert.Equal(t, 7, r.Start.Column)
	assert.Equal(t, 7+len("demo"), r.End.Column)
}
