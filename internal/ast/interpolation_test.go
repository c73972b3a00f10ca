package ast

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange() hcl.Range {
	return hcl.Range{Filename: "test.yaml", Start: hcl.InitialPos, End: hcl.InitialPos}
}

func TestHasInterpolations(t *testing.T) {
	assert.False(t, HasInterpolations("plain text"))
	assert.False(t, HasInterpolations("costs $5"))
	assert.False(t, HasInterpolations("escaped $${not.one}"))
	assert.True(t, HasInterpolations("${a}"))
	assert.True(t, HasInterpolations("prefix ${a.b} suffix"))
	assert.True(t, HasInterpolations("$$${real}"))
}

func TestParseInterpolation(t *testing.T) {
	t.Run("plain text yields one trailing part", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("hello", testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		assert.Equal(t, "hello", parts[0].Text)
		assert.Nil(t, parts[0].Value)
	})

	t.Run("dollar escape", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("cost: $$5 and $${skip}", testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		assert.Equal(t, "cost: $5 and ${skip}", parts[0].Text)
		assert.Nil(t, parts[0].Value)
	})

	t.Run("single access", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("${bucket.id}", testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		assert.Equal(t, "", parts[0].Text)
		require.NotNil(t, parts[0].Value)
		assert.Equal(t, "bucket.id", parts[0].Value.String())
	})

	t.Run("text around access", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("a ${b} c ${d.e} f", testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 3)
		assert.Equal(t, "a ", parts[0].Text)
		assert.Equal(t, "b", parts[0].Value.String())
		assert.Equal(t, " c ", parts[1].Text)
		assert.Equal(t, "d.e", parts[1].Value.String())
		assert.Equal(t, " f", parts[2].Text)
		assert.Nil(t, parts[2].Value)
	})

	t.Run("quoted subscript", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation(`${bucket.tags["env name"]}`, testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		assert.Equal(t, `bucket.tags["env name"]`, parts[0].Value.String())
	})

	t.Run("escaped quote inside subscript", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation(`${obj["a\"b"]}`, testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		accessors := parts[0].Value.Accessors
		require.Len(t, accessors, 2)
		assert.Equal(t, `a"b`, accessors[1].(StringSubscript).Key)
	})

	t.Run("integer subscript", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("${items[3].name}", testRange(), &diags)
		require.Empty(t, diags)
		require.Len(t, parts, 1)
		accessors := parts[0].Value.Accessors
		require.Len(t, accessors, 3)
		assert.Equal(t, int64(3), accessors[1].(IntSubscript).Index)
		assert.Equal(t, "name", accessors[2].(NameAccessor).Name)
	})

	t.Run("integer subscript cannot be the root", func(t *testing.T) {
		var diags hcl.Diagnostics
		ParseInterpolation("${[0]}", testRange(), &diags)
		require.NotEmpty(t, diags)
		assert.Contains(t, diags[0].Detail, "root property")
	})

	t.Run("missing closing brace", func(t *testing.T) {
		var diags hcl.Diagnostics
		ParseInterpolation("${bucket.id", testRange(), &diags)
		require.NotEmpty(t, diags)
		assert.Contains(t, diags[0].Detail, "missing closing brace")
	})

	t.Run("empty interpolation is rejected", func(t *testing.T) {
		var diags hcl.Diagnostics
		parts := ParseInterpolation("${}", testRange(), &diags)
		require.NotEmpty(t, diags)
		assert.Contains(t, diags[0].Detail, "empty property name")
		for _, part := range parts {
			assert.Nil(t, part.Value, "no access chain may escape a malformed interpolation")
		}
	})
}

func TestParseFullPropertyAccess(t *testing.T) {
	t.Run("accepts a complete access", func(t *testing.T) {
		var diags hcl.Diagnostics
		access, ok := ParseFullPropertyAccess("bucket.id", testRange(), &diags)
		require.True(t, ok)
		assert.Equal(t, "bucket", access.RootName())
	})

	t.Run("rejects trailing input", func(t *testing.T) {
		var diags hcl.Diagnostics
		_, ok := ParseFullPropertyAccess("bucket.id} extra", testRange(), &diags)
		assert.False(t, ok)
		require.NotEmpty(t, diags)
	})

	t.Run("rejects an empty expression", func(t *testing.T) {
		var diags hcl.Diagnostics
		_, ok := ParseFullPropertyAccess("", testRange(), &diags)
		assert.False(t, ok)
		require.NotEmpty(t, diags)
		assert.Contains(t, diags[0].Detail, "empty property name")
	})
}
