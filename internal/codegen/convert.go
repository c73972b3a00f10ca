package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/bind"
)

// Options controls conversion behavior.
type Options struct {
	// Strict makes unsupported constructs and invalid generated IR hard
	// errors instead of warnings with null placeholders.
	Strict bool
}

// UnsupportedConstructError reports a program construct the IR cannot
// express.
type UnsupportedConstructError struct {
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported construct '%s' in IR conversion", e.Construct)
}

type converter struct {
	names *assignedNames
	opts  Options
	diags hcl.Diagnostics
}

// Convert renders a program as IR text. Blocks are grouped by category
// (config, variables, resources, outputs, components), sorted
// alphabetically within each, and separated by blank lines. The result is
// deterministic for a given program.
func Convert(p *ast.Program, opts Options) (string, hcl.Diagnostics) {
	c := &converter{names: assignNames(p), opts: opts}

	var w strings.Builder
	first := true
	sep := func() {
		if !first {
			w.WriteByte('\n')
		}
		first = false
	}

	configByName := map[string]*ast.ConfigDecl{}
	for _, d := range p.Config {
		configByName[d.Name] = d
	}
	for _, key := range sortedConfigKeys(p.Config) {
		sep()
		c.writeConfig(&w, configByName[key])
	}

	varByName := map[string]*ast.VariableDecl{}
	for _, d := range p.Variables {
		varByName[d.Name] = d
	}
	for _, key := range sortedVariableKeys(p.Variables) {
		sep()
		d := varByName[key]
		fmt.Fprintf(&w, "%s = %s\n", c.names.variables[key], c.exprToIR(d.Value, 0))
	}

	resByName := map[string]*ast.ResourceDecl{}
	for _, d := range p.Resources {
		resByName[d.LogicalName] = d
	}
	for _, key := range sortedResourceKeys(p.Resources) {
		sep()
		c.writeResource(&w, resByName[key])
	}

	outByName := map[string]*ast.OutputDecl{}
	for _, d := range p.Outputs {
		outByName[d.Name] = d
	}
	for _, key := range sortedOutputKeys(p.Outputs) {
		sep()
		d := outByName[key]
		fmt.Fprintf(&w, "output %s {\n", c.names.outputs[key])
		fmt.Fprintf(&w, "\t__logicalName = \"%s\"\n", escapeString(key))
		fmt.Fprintf(&w, "\tvalue = %s\n", c.exprToIR(d.Value, 1))
		w.WriteString("}\n")
	}

	compByName := map[string]*ast.ComponentDecl{}
	for _, d := range p.Components {
		compByName[d.Name] = d
	}
	for _, key := range sortedComponentKeys(p.Components) {
		sep()
		c.writeComponent(&w, compByName[key])
	}

	out := w.String()
	c.validate(out)
	return out, c.diags
}

func (c *converter) writeConfig(w *strings.Builder, d *ast.ConfigDecl) {
	irType := configTypeToIR(d.Type)
	if irType == "" {
		irType = "string"
	}
	fmt.Fprintf(w, "config %s %s {\n", c.names.configuration[d.Name], irType)
	fmt.Fprintf(w, "\t__logicalName = \"%s\"\n", escapeString(d.Name))
	if d.Default != nil {
		fmt.Fprintf(w, "\tdefault = %s\n", c.exprToIR(d.Default, 1))
	}
	if d.Secret {
		w.WriteString("\tsecret = true\n")
	}
	w.WriteString("}\n")
}

func (c *converter) writeResource(w *strings.Builder, d *ast.ResourceDecl) {
	display := collapseTypeToken(canonicalizeTypeToken(d.Token))

	fmt.Fprintf(w, "resource %s \"%s\" {\n", c.names.resources[d.LogicalName], display)
	fmt.Fprintf(w, "\t__logicalName = \"%s\"\n", escapeString(d.LogicalName))

	props := d.Properties
	if d.IsGet() {
		// External reads carry their hints as ordinary properties; the IR
		// has no read form.
		props = d.Get.State
	}
	switch {
	case d.PropertiesExpr != nil:
		fmt.Fprintf(w, "\tproperties = %s\n", c.exprToIR(d.PropertiesExpr, 1))
	default:
		for _, prop := range props {
			fmt.Fprintf(w, "\t%s = %s\n", prop.Key, c.exprToIR(prop.Value, 1))
		}
	}

	c.writeResourceOptions(w, d.Options)
	w.WriteString("}\n")
}

func (c *converter) writeResourceOptions(w *strings.Builder, o *ast.ResourceOptions) {
	if o == nil {
		return
	}
	var buf strings.Builder

	if o.DependsOn != nil {
		if list, ok := o.DependsOn.(*ast.ListExpr); ok {
			switch len(list.Items) {
			case 0:
			case 1:
				fmt.Fprintf(&buf, "\t\tdependsOn = [%s]\n", c.bareTraversal(list.Items[0]))
			default:
				buf.WriteString("\t\tdependsOn = [\n")
				for _, item := range list.Items {
					fmt.Fprintf(&buf, "\t\t\t%s,\n", c.bareTraversal(item))
				}
				buf.WriteString("\t\t]\n")
			}
		} else {
			fmt.Fprintf(&buf, "\t\tdependsOn = %s\n", c.exprToIR(o.DependsOn, 2))
		}
	}
	if o.Protect != nil {
		fmt.Fprintf(&buf, "\t\tprotect = %s\n", c.exprToIR(o.Protect, 2))
	}
	if o.Provider != nil {
		fmt.Fprintf(&buf, "\t\tprovider = %s\n", c.bareTraversal(o.Provider))
	}
	writeStringList(&buf, "ignoreChanges", o.IgnoreChanges)
	if o.Version != "" {
		fmt.Fprintf(&buf, "\t\tversion = \"%s\"\n", escapeString(o.Version))
	}
	if o.PluginDownloadURL != "" {
		fmt.Fprintf(&buf, "\t\tpluginDownloadUrl = \"%s\"\n", escapeString(o.PluginDownloadURL))
	}
	if o.Parent != nil {
		fmt.Fprintf(&buf, "\t\tparent = %s\n", c.bareTraversal(o.Parent))
	}
	if o.Import != "" {
		fmt.Fprintf(&buf, "\t\timport = \"%s\"\n", escapeString(o.Import))
	}
	if o.RetainOnDelete {
		buf.WriteString("\t\tretainOnDelete = true\n")
	}
	if o.DeletedWith != nil {
		fmt.Fprintf(&buf, "\t\tdeletedWith = %s\n", c.bareTraversal(o.DeletedWith))
	}
	writeStringList(&buf, "replaceOnChanges", o.ReplaceOnChanges)
	writeStringList(&buf, "additionalSecretOutputs", o.AdditionalSecretOutputs)

	if buf.Len() == 0 {
		return
	}
	w.WriteString("\n\toptions {\n")
	w.WriteString(buf.String())
	w.WriteString("\t}\n")
}

func writeStringList(buf *strings.Builder, name string, items []string) {
	switch len(items) {
	case 0:
	case 1:
		fmt.Fprintf(buf, "\t\t%s = [%s]\n", name, items[0])
	default:
		fmt.Fprintf(buf, "\t\t%s = [\n", name)
		for _, item := range items {
			fmt.Fprintf(buf, "\t\t\t%s,\n", item)
		}
		buf.WriteString("\t\t]\n")
	}
}

func (c *converter) writeComponent(w *strings.Builder, d *ast.ComponentDecl) {
	fmt.Fprintf(w, "component %s \"./%s\" {\n", c.names.components[d.Name], d.Name)
	fmt.Fprintf(w, "\t__logicalName = \"%s\"\n", escapeString(d.Name))

	for _, input := range d.Inputs {
		irType := configTypeToIR(input.Type)
		if irType == "" {
			irType = "string"
		}
		if input.Default != nil {
			fmt.Fprintf(w, "\t%s = %s // type: %s\n", input.Name, c.exprToIR(input.Default, 1), irType)
		} else if input.Value != nil {
			fmt.Fprintf(w, "\t%s = %s\n", input.Name, c.exprToIR(input.Value, 1))
		}
	}
	w.WriteString("}\n")
}

func (c *converter) exprToIR(e ast.Expr, indent int) string {
	switch t := e.(type) {
	case nil:
		return "null"
	case *ast.NullExpr:
		return "null"
	case *ast.BoolExpr:
		return strconv.FormatBool(t.Value)
	case *ast.NumberExpr:
		return formatNumber(t.Value)
	case *ast.StringExpr:
		return "\"" + escapeString(t.Value) + "\""

	case *ast.SymbolExpr:
		return c.accessToIR(t.Access)
	case *ast.InterpolateExpr:
		return c.interpolationToIR(t.Parts)

	case *ast.ListExpr:
		return c.listToIR(t.Items, indent)
	case *ast.ObjectExpr:
		return c.objectToIR(t.Entries, indent)

	case *ast.CallExpr:
		return c.callToIR(t, indent)

	case *ast.JoinExpr:
		return fmt.Sprintf("join(%s, %s)", c.exprToIR(t.Delimiter, indent), c.exprToIR(t.Values, indent))
	case *ast.SelectExpr:
		// Selection lowers to an index expression.
		return fmt.Sprintf("%s[%s]", c.exprToIR(t.Values, indent), c.exprToIR(t.Index, indent))
	case *ast.SplitExpr:
		return fmt.Sprintf("split(%s, %s)", c.exprToIR(t.Delimiter, indent), c.exprToIR(t.Source, indent))
	case *ast.SubstringExpr:
		return c.unsupported("fn::substring", t.Range())

	case *ast.InvokeExpr:
		return c.invokeToIR(t)

	case *ast.AssetExpr:
		return fmt.Sprintf("%s(%s)", strings.TrimPrefix(string(t.Kind), "fn::"), c.exprToIR(t.Source, indent))
	case *ast.ArchiveExpr:
		return fmt.Sprintf("%s(%s)", strings.TrimPrefix(string(t.Kind), "fn::"), c.exprToIR(t.Source, indent))
	case *ast.AssetArchiveExpr:
		return c.assetArchiveToIR(t, indent)

	case *ast.TemplateExpr:
		return c.unsupported("template block", t.Range())
	}
	return c.unsupported(fmt.Sprintf("%T", e), e.Range())
}

func (c *converter) callToIR(t *ast.CallExpr, indent int) string {
	switch t.Func {
	case ast.FuncToJSON, ast.FuncToBase64, ast.FuncFromBase64, ast.FuncSecret, ast.FuncReadFile:
		name := strings.TrimPrefix(string(t.Func), "fn::")
		return fmt.Sprintf("%s(%s)", name, c.exprToIR(t.Arg, indent))
	}
	return c.unsupported(string(t.Func), t.Range())
}

// unsupported records a diagnostic and returns the null placeholder the
// original construct is replaced with.
func (c *converter) unsupported(construct string, rng hcl.Range) string {
	err := &UnsupportedConstructError{Construct: construct}
	severity := hcl.DiagWarning
	if c.opts.Strict {
		severity = hcl.DiagError
	}
	c.diags = append(c.diags, &hcl.Diagnostic{
		Severity: severity,
		Summary:  "unsupported construct",
		Detail:   err.Error() + "; it will be emitted as null",
		Subject:  &rng,
		Extra:    err,
	})
	return "null /* unsupported builtin */"
}

func (c *converter) accessToIR(access *ast.PropertyAccess) string {
	var b strings.Builder
	for i, acc := range access.Accessors {
		switch a := acc.(type) {
		case ast.NameAccessor:
			if i == 0 {
				if a.Name == bind.AmbientName {
					return c.ambientToIR(access)
				}
				b.WriteString(c.names.resolve(a.Name))
			} else {
				b.WriteByte('.')
				b.WriteString(a.Name)
			}
		case ast.StringSubscript:
			fmt.Fprintf(&b, "[\"%s\"]", escapeString(a.Key))
		case ast.IntSubscript:
			fmt.Fprintf(&b, "[%d]", a.Index)
		}
	}
	return b.String()
}

// ambientToIR lowers the reserved metadata symbol to the IR's function
// forms.
func (c *converter) ambientToIR(access *ast.PropertyAccess) string {
	if len(access.Accessors) < 2 {
		return "null"
	}
	name, ok := access.Accessors[1].(ast.NameAccessor)
	if !ok {
		return "null"
	}
	switch name.Name {
	case "cwd", "project", "stack", "organization", "rootDirectory":
		return name.Name + "()"
	}
	return fmt.Sprintf("null /* unknown %s.%s */", bind.AmbientName, name.Name)
}

func (c *converter) interpolationToIR(parts []ast.InterpolationPart) string {
	if len(parts) == 1 && parts[0].Text == "" && parts[0].Value != nil {
		return c.accessToIR(parts[0].Value)
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, part := range parts {
		b.WriteString(escapeString(part.Text))
		if part.Value != nil {
			b.WriteString("${")
			b.WriteString(c.accessToIR(part.Value))
			b.WriteByte('}')
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (c *converter) listToIR(items []ast.Expr, indent int) string {
	if len(items) == 0 {
		return "[]"
	}
	if len(items) == 1 {
		return "[" + c.exprToIR(items[0], indent+1) + "]"
	}

	tabs := strings.Repeat("\t", indent)
	innerTabs := strings.Repeat("\t", indent+1)
	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range items {
		fmt.Fprintf(&b, "%s%s,\n", innerTabs, c.exprToIR(item, indent+1))
	}
	b.WriteString(tabs)
	b.WriteByte(']')
	return b.String()
}

func (c *converter) objectToIR(entries []ast.ObjectEntry, indent int) string {
	if len(entries) == 0 {
		return "{}"
	}

	tabs := strings.Repeat("\t", indent)
	innerTabs := strings.Repeat("\t", indent+1)
	var b strings.Builder
	b.WriteString("{\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s%s = %s\n", innerTabs, c.objectKeyToIR(entry.Key), c.exprToIR(entry.Value, indent+1))
	}
	b.WriteString(tabs)
	b.WriteByte('}')
	return b.String()
}

func (c *converter) objectKeyToIR(key ast.Expr) string {
	if s, ok := key.(*ast.StringExpr); ok {
		if isValidAttrName(s.Value) {
			return s.Value
		}
		return "\"" + escapeString(s.Value) + "\""
	}
	return c.exprToIR(key, 0)
}

func (c *converter) invokeToIR(t *ast.InvokeExpr) string {
	display := collapseTypeToken(canonicalizeTypeToken(t.Token))

	args := "{}"
	if t.CallArgs != nil {
		args = c.exprToIR(t.CallArgs, 0)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "invoke(\"%s\", %s%s)", display, args, c.invokeOptionsToIR(&t.CallOpts))
	if t.Return != "" {
		b.WriteByte('.')
		b.WriteString(t.Return)
	}
	return b.String()
}

func (c *converter) invokeOptionsToIR(opts *ast.InvokeOptions) string {
	var entries []string
	if opts.Parent != nil {
		entries = append(entries, "\tparent = "+c.bareTraversal(opts.Parent))
	}
	if opts.Provider != nil {
		entries = append(entries, "\tprovider = "+c.bareTraversal(opts.Provider))
	}
	if opts.Version != "" {
		entries = append(entries, "\tversion = \""+escapeString(opts.Version)+"\"")
	}
	if opts.PluginDownloadURL != "" {
		entries = append(entries, "\tpluginDownloadUrl = \""+escapeString(opts.PluginDownloadURL)+"\"")
	}
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(", {\n")
	for i, entry := range entries {
		b.WriteString(entry)
		if i < len(entries)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}

func (c *converter) assetArchiveToIR(t *ast.AssetArchiveExpr, indent int) string {
	if len(t.Entries) == 0 {
		return "assetArchive({})"
	}

	tabs := strings.Repeat("\t", indent)
	innerTabs := strings.Repeat("\t", indent+1)
	var b strings.Builder
	b.WriteString("assetArchive({\n")
	for _, entry := range t.Entries {
		fmt.Fprintf(&b, "%s\"%s\" = %s\n", innerTabs, escapeString(entry.Key), c.exprToIR(entry.Value, indent+1))
	}
	b.WriteString(tabs)
	b.WriteString("})")
	return b.String()
}

// bareTraversal renders resource references without string quoting, as
// used in option positions like provider.
func (c *converter) bareTraversal(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.SymbolExpr:
		return c.accessToIR(t.Access)
	case *ast.InterpolateExpr:
		if len(t.Parts) == 1 && t.Parts[0].Text == "" && t.Parts[0].Value != nil {
			return c.accessToIR(t.Parts[0].Value)
		}
	}
	return c.exprToIR(e, 0)
}

// validate parses the generated IR back to catch emission bugs. Problems
// are errors in strict mode, warnings otherwise.
func (c *converter) validate(src string) {
	_, parseDiags := hclsyntax.ParseConfig([]byte(src), "generated.pp", hcl.InitialPos)
	if !parseDiags.HasErrors() {
		return
	}
	severity := hcl.DiagWarning
	if c.opts.Strict {
		severity = hcl.DiagError
	}
	for _, d := range parseDiags.Errs() {
		pd := d.(*hcl.Diagnostic)
		c.diags = append(c.diags, &hcl.Diagnostic{
			Severity: severity,
			Summary:  "generated IR failed to parse",
			Detail:   pd.Detail,
			Subject:  pd.Subject,
		})
	}
}

func isValidAttrName(s string) bool {
	if s == "" {
		return false
	}
	for i, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_':
		case i > 0 && ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return true
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// configTypeToIR maps a declared configuration type to the IR type token;
// empty means unsupported.
func configTypeToIR(token string) string {
	lower := strings.ToLower(token)
	if strings.HasPrefix(lower, "list<") && strings.HasSuffix(lower, ">") {
		inner := configTypeToIR(token[5 : len(token)-1])
		if inner == "" {
			return ""
		}
		return "list(" + inner + ")"
	}
	switch lower {
	case "string":
		return "string"
	case "int", "integer":
		return "int"
	case "number":
		return "number"
	case "bool", "boolean":
		return "bool"
	case "dynamic", "any":
		return "any"
	case "object":
		return "map(any)"
	}
	return ""
}
