package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestConfigType(t *testing.T) {
	cases := []struct {
		token string
		want  cty.Type
	}{
		{"", cty.String},
		{"string", cty.String},
		{"String", cty.String},
		{"int", cty.Number},
		{"integer", cty.Number},
		{"number", cty.Number},
		{"bool", cty.Bool},
		{"boolean", cty.Bool},
		{"list<string>", cty.List(cty.String)},
		{"list<int>", cty.List(cty.Number)},
		{"list<list<bool>>", cty.List(cty.List(cty.Bool))},
	}
	for _, tc := range cases {
		got, err := ConfigType(tc.token)
		require.NoError(t, err, "token %q", tc.token)
		assert.True(t, got.Equals(tc.want), "token %q: got %s", tc.token, got.FriendlyName())
	}

	_, err := ConfigType("map<string>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration type")

	_, err = ConfigType("list<whatever>")
	require.Error(t, err)
}

func TestResourceLookups(t *testing.T) {
	res := &Resource{
		Token: "aws:s3/bucket:Bucket",
		InputProperties: map[string]cty.Type{
			"bucketPrefix": cty.String,
		},
		Outputs: map[string]cty.Type{
			"arn": cty.String,
		},
		SecretInputs: []string{"accessKey"},
	}

	assert.True(t, res.HasInput("bucketPrefix"))
	assert.False(t, res.HasInput("arn"))

	typ, ok := res.OutputType("arn")
	require.True(t, ok)
	assert.Equal(t, cty.String, typ)

	// Inputs double as outputs.
	typ, ok = res.OutputType("bucketPrefix")
	require.True(t, ok)
	assert.Equal(t, cty.String, typ)

	_, ok = res.OutputType("missing")
	assert.False(t, ok)

	assert.True(t, res.SecretInput("accessKey"))
	assert.False(t, res.SecretInput("bucketPrefix"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterResource(&Resource{Token: "aws:s3/bucket:Bucket"})
	reg.RegisterFunction(&Function{Token: "aws:ec2/getAmi:getAmi"})

	_, ok := reg.Resource("aws:s3/bucket:Bucket")
	assert.True(t, ok)
	_, ok = reg.Resource("aws:s3/bucket:Missing")
	assert.False(t, ok)

	_, ok = reg.Function("aws:ec2/getAmi:getAmi")
	assert.True(t, ok)

	assert.Equal(t, []string{"aws:s3/bucket:Bucket"}, reg.ResourceTokens())
}
