package builder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"

	"github.com/vk/yamlstack/internal/ast"
	"github.com/vk/yamlstack/internal/syntax"
)

// builder carries the parsing state for one document.
type builder struct {
	doc    *syntax.Document
	parser *ast.Parser
	diags  hcl.Diagnostics
}

// Build converts a structural document into a typed program. maxExprDepth
// bounds expression nesting; zero applies the parser's default. The returned
// program is always non-nil; callers must check the diagnostics for errors
// before treating it as well-formed.
func Build(doc *syntax.Document, maxExprDepth int) (*ast.Program, hcl.Diagnostics) {
	b := &builder{
		doc:    doc,
		parser: ast.NewParser(doc.Filename, maxExprDepth),
	}

	program := &ast.Program{}

	root := syntax.Resolve(doc.Root)
	if root.Kind != yaml.MappingNode {
		b.errorf(root, "invalid document", "the top level of a program document must be a mapping")
		return program, b.diags
	}

	syntax.EachPair(root, func(key, value *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "name":
			program.Name = b.scalarString(value, "name")
		case "description":
			program.Description = b.scalarString(value, "description")
		case "runtime":
			// Accepted for compatibility with project files; carries no
			// meaning for evaluation.
		case "config", "configuration":
			program.Config = b.buildConfigBlock(value)
		case "variables":
			syntax.EachPair(syntax.Resolve(value), func(name, val *yaml.Node) {
				program.Variables = append(program.Variables, &ast.VariableDecl{
					Name:     name.Value,
					Value:    b.parser.ParseExpr(val, &b.diags),
					DefRange: b.rng(name),
				})
			})
		case "resources":
			syntax.EachPair(syntax.Resolve(value), func(name, val *yaml.Node) {
				if decl := b.buildResource(name, val); decl != nil {
					program.Resources = append(program.Resources, decl)
				}
			})
		case "outputs":
			syntax.EachPair(syntax.Resolve(value), func(name, val *yaml.Node) {
				program.Outputs = append(program.Outputs, &ast.OutputDecl{
					Name:     name.Value,
					Value:    b.parser.ParseExpr(val, &b.diags),
					DefRange: b.rng(name),
				})
			})
		case "components":
			syntax.EachPair(syntax.Resolve(value), func(name, val *yaml.Node) {
				if decl := b.buildComponent(name, val); decl != nil {
					program.Components = append(program.Components, decl)
				}
			})
		default:
			b.warnf(key, "unknown document section", "'%s' is not a recognized top-level key and will be ignored", key.Value)
		}
	})

	return program, b.diags
}

// buildConfigBlock parses the config/configuration section. Each entry is
// either a shorthand scalar default or a full parameter object.
func (b *builder) buildConfigBlock(value *yaml.Node) []*ast.ConfigDecl {
	var decls []*ast.ConfigDecl
	syntax.EachPair(syntax.Resolve(value), func(name, val *yaml.Node) {
		decls = append(decls, b.buildConfigParam(name, val))
	})
	return decls
}

// configParamKeys are the keys that make a mapping a parameter object
// rather than a shorthand object-typed default.
func isConfigParamObject(n *yaml.Node) bool {
	found := false
	syntax.EachPair(n, func(key, _ *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "type", "default", "secret", "value":
			found = true
		}
	})
	return found
}

func (b *builder) buildConfigParam(name, val *yaml.Node) *ast.ConfigDecl {
	decl := &ast.ConfigDecl{Name: name.Value, DefRange: b.rng(name)}

	v := syntax.Resolve(val)
	if v.Kind != yaml.MappingNode || !isConfigParamObject(v) {
		// Shorthand: the value is the default.
		decl.Default = b.parser.ParseExpr(val, &b.diags)
		return decl
	}

	syntax.EachPair(v, func(key, pv *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "type":
			decl.Type = b.scalarString(pv, "type")
		case "default":
			decl.Default = b.parser.ParseExpr(pv, &b.diags)
		case "value":
			decl.Value = b.parser.ParseExpr(pv, &b.diags)
		case "secret":
			decl.Secret = b.scalarBool(pv, "secret")
		default:
			b.warnf(key, "unknown configuration key", "'%s' is not a recognized configuration parameter key", key.Value)
		}
	})
	return decl
}

func (b *builder) buildResource(name, val *yaml.Node) *ast.ResourceDecl {
	v := syntax.Resolve(val)
	if v.Kind != yaml.MappingNode {
		b.errorf(v, "invalid resource declaration", "resource '%s' must be a mapping with at least a 'type' key", name.Value)
		return nil
	}

	decl := &ast.ResourceDecl{LogicalName: name.Value, DefRange: b.rng(name)}

	syntax.EachPair(v, func(key, rv *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "type":
			decl.Token = b.scalarString(rv, "type")
		case "name":
			decl.Name = b.scalarString(rv, "name")
		case "defaultprovider":
			decl.DefaultProvider = b.scalarBool(rv, "defaultProvider")
		case "properties":
			props := syntax.Resolve(rv)
			if props.Kind == yaml.MappingNode {
				decl.Properties = b.buildProperties(props)
			} else {
				decl.PropertiesExpr = b.parser.ParseExpr(rv, &b.diags)
			}
		case "options":
			decl.Options = b.buildOptions(rv)
		case "get":
			decl.Get = b.buildGet(rv)
		default:
			b.warnf(key, "unknown resource key", "'%s' is not a recognized resource key", key.Value)
		}
	})

	if decl.Token == "" {
		b.errorf(v, "invalid resource declaration", "resource '%s' is missing the required 'type' key", name.Value)
		return nil
	}
	if decl.Get != nil && decl.Properties != nil {
		b.errorf(v, "invalid resource declaration", "resource '%s' cannot declare both 'properties' and 'get'", name.Value)
	}
	return decl
}

func (b *builder) buildProperties(n *yaml.Node) []*ast.Property {
	var props []*ast.Property
	syntax.EachPair(n, func(key, val *yaml.Node) {
		props = append(props, &ast.Property{
			Key:      key.Value,
			Value:    b.parser.ParseExpr(val, &b.diags),
			KeyRange: b.rng(key),
		})
	})
	return props
}

func (b *builder) buildOptions(val *yaml.Node) *ast.ResourceOptions {
	v := syntax.Resolve(val)
	if v.Kind != yaml.MappingNode {
		b.errorf(v, "invalid resource options", "'options' must be a mapping")
		return nil
	}

	opts := &ast.ResourceOptions{}
	syntax.EachPair(v, func(key, ov *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "dependson":
			opts.DependsOn = b.parser.ParseExpr(ov, &b.diags)
		case "protect":
			opts.Protect = b.parser.ParseExpr(ov, &b.diags)
		case "provider":
			opts.Provider = b.parser.ParseExpr(ov, &b.diags)
		case "parent":
			opts.Parent = b.parser.ParseExpr(ov, &b.diags)
		case "deletedwith":
			opts.DeletedWith = b.parser.ParseExpr(ov, &b.diags)
		case "providers":
			opts.Providers = b.parser.ParseExpr(ov, &b.diags)
		case "aliases":
			opts.Aliases = b.parser.ParseExpr(ov, &b.diags)
		case "ignorechanges":
			opts.IgnoreChanges = b.stringList(ov, "ignoreChanges")
		case "replaceonchanges":
			opts.ReplaceOnChanges = b.stringList(ov, "replaceOnChanges")
		case "additionalsecretoutputs":
			opts.AdditionalSecretOutputs = b.stringList(ov, "additionalSecretOutputs")
		case "version":
			opts.Version = b.scalarString(ov, "version")
		case "plugindownloadurl":
			opts.PluginDownloadURL = b.scalarString(ov, "pluginDownloadUrl")
		case "import":
			opts.Import = b.scalarString(ov, "import")
		case "retainondelete":
			opts.RetainOnDelete = b.scalarBool(ov, "retainOnDelete")
		case "deletebeforereplace":
			opts.DeleteBeforeReplace = b.scalarBool(ov, "deleteBeforeReplace")
		case "customtimeouts":
			opts.CustomTimeouts = b.buildCustomTimeouts(ov)
		default:
			b.warnf(key, "unknown resource option", "'%s' is not a recognized resource option", key.Value)
		}
	})
	return opts
}

func (b *builder) buildCustomTimeouts(val *yaml.Node) *ast.CustomTimeouts {
	ct := &ast.CustomTimeouts{}
	ok := syntax.EachPair(val, func(key, tv *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "create":
			ct.Create = b.scalarString(tv, "create")
		case "update":
			ct.Update = b.scalarString(tv, "update")
		case "delete":
			ct.Delete = b.scalarString(tv, "delete")
		default:
			b.warnf(key, "unknown timeout key", "'%s' is not a recognized custom timeout", key.Value)
		}
	})
	if !ok {
		b.errorf(syntax.Resolve(val), "invalid resource options", "'customTimeouts' must be a mapping")
		return nil
	}
	return ct
}

func (b *builder) buildGet(val *yaml.Node) *ast.GetDecl {
	v := syntax.Resolve(val)
	if v.Kind != yaml.MappingNode {
		b.errorf(v, "invalid get declaration", "'get' must be a mapping with an 'id' key")
		return nil
	}

	get := &ast.GetDecl{}
	syntax.EachPair(v, func(key, gv *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "id":
			get.ID = b.parser.ParseExpr(gv, &b.diags)
		case "state":
			state := syntax.Resolve(gv)
			if state.Kind != yaml.MappingNode {
				b.errorf(state, "invalid get declaration", "'state' must be a mapping")
				return
			}
			get.State = b.buildProperties(state)
		default:
			b.warnf(key, "unknown get key", "'%s' is not a recognized get key", key.Value)
		}
	})

	if get.ID == nil {
		b.errorf(v, "invalid get declaration", "'get' requires an 'id' key")
		return nil
	}
	return get
}

func (b *builder) buildComponent(name, val *yaml.Node) *ast.ComponentDecl {
	v := syntax.Resolve(val)
	if v.Kind != yaml.MappingNode {
		b.errorf(v, "invalid component declaration", "component '%s' must be a mapping", name.Value)
		return nil
	}

	decl := &ast.ComponentDecl{Name: name.Value, DefRange: b.rng(name)}
	syntax.EachPair(v, func(key, cv *yaml.Node) {
		switch strings.ToLower(key.Value) {
		case "description":
			decl.Description = b.scalarString(cv, "description")
		case "inputs", "config", "configuration":
			decl.Inputs = b.buildConfigBlock(cv)
		case "variables":
			syntax.EachPair(syntax.Resolve(cv), func(vn, vv *yaml.Node) {
				decl.Variables = append(decl.Variables, &ast.VariableDecl{
					Name:     vn.Value,
					Value:    b.parser.ParseExpr(vv, &b.diags),
					DefRange: b.rng(vn),
				})
			})
		case "resources":
			syntax.EachPair(syntax.Resolve(cv), func(rn, rv *yaml.Node) {
				if r := b.buildResource(rn, rv); r != nil {
					decl.Resources = append(decl.Resources, r)
				}
			})
		case "outputs":
			syntax.EachPair(syntax.Resolve(cv), func(on, ov *yaml.Node) {
				decl.Outputs = append(decl.Outputs, &ast.OutputDecl{
					Name:     on.Value,
					Value:    b.parser.ParseExpr(ov, &b.diags),
					DefRange: b.rng(on),
				})
			})
		default:
			b.warnf(key, "unknown component key", "'%s' is not a recognized component key", key.Value)
		}
	})
	return decl
}

// scalarString requires a plain string scalar; expressions are not allowed
// in structural positions like type tokens and option strings.
func (b *builder) scalarString(n *yaml.Node, field string) string {
	v := syntax.Resolve(n)
	if v.Kind != yaml.ScalarNode {
		b.errorf(v, "invalid field value", "'%s' must be a string", field)
		return ""
	}
	return v.Value
}

func (b *builder) scalarBool(n *yaml.Node, field string) bool {
	v := syntax.Resolve(n)
	if v.Kind == yaml.ScalarNode {
		if parsed, err := strconv.ParseBool(v.Value); err == nil {
			return parsed
		}
	}
	b.errorf(v, "invalid field value", "'%s' must be a boolean", field)
	return false
}

func (b *builder) stringList(n *yaml.Node, field string) []string {
	v := syntax.Resolve(n)
	if v.Kind != yaml.SequenceNode {
		b.errorf(v, "invalid field value", "'%s' must be a list of strings", field)
		return nil
	}
	out := make([]string, 0, len(v.Content))
	for _, item := range v.Content {
		item = syntax.Resolve(item)
		if item.Kind != yaml.ScalarNode {
			b.errorf(item, "invalid field value", "'%s' entries must be strings", field)
			continue
		}
		out = append(out, item.Value)
	}
	return out
}

func (b *builder) rng(n *yaml.Node) hcl.Range {
	return syntax.Range(b.doc.Filename, n)
}

func (b *builder) errorf(n *yaml.Node, summary, format string, args ...any) {
	rng := b.rng(n)
	b.diags = append(b.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  &rng,
	})
}

func (b *builder) warnf(n *yaml.Node, summary, format string, args ...any) {
	rng := b.rng(n)
	b.diags = append(b.diags, &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  &rng,
	})
}
