package codegen

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/builder"
	"github.com/vk/yamlstack/internal/syntax"
)

func convertSource(t *testing.T, src string, opts Options) (string, hcl.Diagnostics) {
	t.Helper()
	doc, diags := syntax.Load([]byte(src), "test.yaml", syntax.Limits{MaxNodes: 100000, MaxDepth: 200})
	require.False(t, diags.HasErrors(), "document must load: %v", diags)
	p, diags := builder.Build(doc, 0)
	require.False(t, diags.HasErrors(), "program must build: %v", diags)
	return Convert(p, opts)
}

func TestConvertBasic(t *testing.T) {
	src := `
name: demo
config:
  environment:
    type: string
    default: dev
  dbPassword:
    type: string
    secret: true
variables:
  prefix: app-${environment}
resources:
  my-bucket:
    type: aws:s3:Bucket
    properties:
      bucketPrefix: ${prefix}
      forceDestroy: true
outputs:
  bucketId: ${my-bucket.id}
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)
	goldie.New(t).Assert(t, "basic", []byte(out))
}

func TestConvertResourceOptions(t *testing.T) {
	src := `
resources:
  base:
    type: aws:s3:Bucket
  other:
    type: aws:s3:Bucket
  guarded:
    type: aws:s3:Bucket
    properties:
      acl: private
    options:
      dependsOn:
        - ${base}
        - ${other}
      protect: true
      provider: ${base}
      ignoreChanges: [tags]
      version: 5.16.2
      parent: ${base}
      import: bucket-12345
      retainOnDelete: true
      replaceOnChanges: [acl, policy]
      additionalSecretOutputs: [secretField]
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)
	goldie.New(t).Assert(t, "options", []byte(out))
}

func TestConvertBuiltins(t *testing.T) {
	src := `
variables:
  selected:
    fn::select:
      - 1
      - [a, b]
  encoded:
    fn::toJSON:
      key: value
  trimmed:
    fn::substring: [hello, 0, 2]
  ami:
    fn::invoke:
      function: aws:ec2:getAmi
      arguments:
        owner: self
      return: id
      options:
        version: 1.0.0
outputs:
  proj: ${pulumi.project}
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "unsupported builtins warn but do not fail: %v", diags)
	goldie.New(t).Assert(t, "builtins", []byte(out))

	var found bool
	for _, d := range diags {
		extra, ok := hcl.DiagnosticExtra[*UnsupportedConstructError](d)
		if !ok {
			continue
		}
		found = true
		assert.Equal(t, hcl.DiagWarning, d.Severity)
		assert.Equal(t, "fn::substring", extra.Construct)
	}
	assert.True(t, found, "substring should report an unsupported-construct warning")
}

func TestConvertInvokeOptions(t *testing.T) {
	src := `
resources:
  base:
    type: aws:s3:Bucket
variables:
  ami:
    fn::invoke:
      function: aws:ec2:getAmi
      arguments:
        owner: self
      options:
        parent: ${base}
        provider: ${base}
        version: 1.2.3
        pluginDownloadUrl: https://example.com/plugin
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)

	want := `ami = invoke("aws:ec2/getAmi:getAmi", {
	owner = "self"
}, {
	parent = base,
	provider = base,
	version = "1.2.3",
	pluginDownloadUrl = "https://example.com/plugin"
})
`
	assert.Contains(t, out, want)
}

func TestConvertOptionsOrder(t *testing.T) {
	src := `
resources:
  prov:
    type: aws:Provider
  bucket:
    type: aws:s3:Bucket
    options:
      version: 4.38.0
      ignoreChanges: [bucketPrefix, tags]
      dependsOn: ["${prov}"]
      protect: true
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)

	// Declaration order in the document does not matter; the emitted block
	// order is fixed.
	want := `	options {
		dependsOn = [prov]
		protect = true
		ignoreChanges = [
			bucketPrefix,
			tags,
		]
		version = "4.38.0"
	}
`
	assert.Contains(t, out, want)
}

func TestConvertComponent(t *testing.T) {
	src := `
components:
  netStack:
    inputs:
      cidr:
        type: string
        default: 10.0.0.0/16
      maxHosts:
        type: int
        default: 2
    resources:
      vpc:
        type: aws:ec2:Vpc
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)
	goldie.New(t).Assert(t, "component", []byte(out))
}

func TestConvertStrict(t *testing.T) {
	src := `
variables:
  trimmed:
    fn::substring: [hello, 0, 2]
`
	out, diags := convertSource(t, src, Options{Strict: true})
	require.True(t, diags.HasErrors(), "strict mode turns unsupported constructs into errors")
	assert.Contains(t, out, "null /* unsupported builtin */")

	src = `
variables:
  greeting: |
    {% if loud %}HELLO{% endif %}
`
	_, diags = convertSource(t, src, Options{Strict: true})
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "unsupported construct")
}

func TestConvertExternalRead(t *testing.T) {
	src := `
resources:
  existing:
    type: aws:s3:Bucket
    get:
      id: bucket-123
      state:
        acl: private
`
	out, diags := convertSource(t, src, Options{})
	require.False(t, diags.HasErrors(), "conversion must succeed: %v", diags)
	assert.Contains(t, out, "resource existing \"aws:s3:Bucket\" {")
	assert.Contains(t, out, "\tacl = \"private\"\n")
	assert.NotContains(t, out, "bucket-123", "read ids have no IR form")
}

func TestConvertPropertyShapes(t *testing.T) {
	t.Run("whole property bags pass through", func(t *testing.T) {
		src := `
variables:
  allProps:
    acl: private
resources:
  bucket:
    type: aws:s3:Bucket
    properties: ${allProps}
`
		out, diags := convertSource(t, src, Options{})
		require.False(t, diags.HasErrors(), "%v", diags)
		assert.Contains(t, out, "\tproperties = allProps\n")
	})

	t.Run("object keys that are not identifiers are quoted", func(t *testing.T) {
		src := `
resources:
  bucket:
    type: aws:s3:Bucket
    properties:
      tags:
        env name: prod
`
		out, diags := convertSource(t, src, Options{})
		require.False(t, diags.HasErrors(), "%v", diags)
		assert.Contains(t, out, "\ttags = {\n\t\t\"env name\" = \"prod\"\n\t}\n")
	})

	t.Run("empty program renders nothing", func(t *testing.T) {
		out, diags := convertSource(t, "name: empty\n", Options{})
		require.False(t, diags.HasErrors(), "%v", diags)
		assert.Equal(t, "", out)
	})
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `say \"hi\"`, escapeString(`say "hi"`))
	assert.Equal(t, `a\\b`, escapeString(`a\b`))
	assert.Equal(t, `line\nbreak`, escapeString("line\nbreak"))
	assert.Equal(t, `tab\there`, escapeString("tab\there"))
}

func TestConfigTypeToIR(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"string", "string"},
		{"int", "int"},
		{"Integer", "int"},
		{"number", "number"},
		{"bool", "bool"},
		{"list<string>", "list(string)"},
		{"list<list<int>>", "list(list(int))"},
		{"any", "any"},
		{"object", "map(any)"},
		{"map<string>", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, configTypeToIR(tc.in), "input %q", tc.in)
	}
}

func TestConvertValidatesOutput(t *testing.T) {
	// A hand-built program with an unparseable property key exercises the
	// re-parse check.
	p := &ast.Program{
		Resources: []*ast.ResourceDecl{{
			LogicalName: "broken",
			Token:       "aws:s3:Bucket",
			Properties: []*ast.Property{{
				Key:   "not a key",
				Value: &ast.StringExpr{Value: "x"},
			}},
		}},
	}
	_, diags := Convert(p, Options{Strict: true})
	require.True(t, diags.HasErrors())
	var found bool
	for _, d := range diags {
		if d.Summary == "generated IR failed to parse" {
			found = true
		}
	}
	assert.True(t, found)
}
