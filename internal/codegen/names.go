package codegen

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/vk/yamlstack/internal/ast"
)

// reservedWords are IR function names and ambient identifiers that
// declaration names must not shadow.
var reservedWords = []string{
	"cwd",
	"element",
	"entries",
	"fileArchive",
	"fileAsset",
	"filebase64",
	"filebase64sha256",
	"fromBase64",
	"invoke",
	"join",
	"length",
	"lookup",
	"mimeType",
	"organization",
	"project",
	"range",
	"readDir",
	"readFile",
	"rootDirectory",
	"secret",
	"sha1",
	"split",
	"stack",
	"toBase64",
	"toJSON",
}

func isLegalIdentifierStart(c rune) bool {
	return c == '$' || c == '_' || unicode.IsLetter(c)
}

func isLegalIdentifierPart(c rune) bool {
	return isLegalIdentifierStart(c) || unicode.IsNumber(c)
}

// makeLegalIdentifier replaces characters an identifier cannot contain
// with underscores.
func makeLegalIdentifier(name string) string {
	if name == "" {
		return "x"
	}
	var b strings.Builder
	for i, c := range name {
		if isLegalIdentifierPart(c) {
			if i == 0 && !isLegalIdentifierStart(c) {
				b.WriteByte('_')
			}
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

// toLowerCamel converts snake/kebab/Pascal names to lowerCamelCase.
func toLowerCamel(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	wordStart := true
	first := true
	for _, c := range name {
		if c == '_' || c == '-' || c == ' ' {
			wordStart = true
			continue
		}
		switch {
		case first:
			b.WriteRune(unicode.ToLower(c))
			first = false
		case wordStart:
			b.WriteRune(unicode.ToUpper(c))
		default:
			b.WriteRune(c)
		}
		wordStart = false
	}
	if b.Len() == 0 {
		return name
	}
	return b.String()
}

// assignedNames maps each declaration's document name to its IR name, per
// category.
type assignedNames struct {
	configuration map[string]string
	outputs       map[string]string
	variables     map[string]string
	resources     map[string]string
	components    map[string]string
}

// assignNames gives every declaration a unique legal IR identifier.
// Categories are processed in a fixed order (config, outputs, variables,
// resources, components), each alphabetically, so the result is
// deterministic. Collisions first try a per-category suffix, then a
// numeric counter.
func assignNames(p *ast.Program) *assignedNames {
	taken := map[string]bool{}
	for _, w := range reservedWords {
		taken[w] = true
	}

	assign := func(name, suffix string) string {
		base := toLowerCamel(makeLegalIdentifier(name))
		if base == "" {
			base = "x"
		}
		if !taken[base] {
			taken[base] = true
			return base
		}
		if suffix != "" {
			if withSuffix := base + suffix; !taken[withSuffix] {
				taken[withSuffix] = true
				return withSuffix
			}
		}
		counterBase := base + suffix
		for i := 0; ; i++ {
			candidate := fmt.Sprintf("%s%d", counterBase, i)
			if !taken[candidate] {
				taken[candidate] = true
				return candidate
			}
		}
	}

	names := &assignedNames{
		configuration: map[string]string{},
		outputs:       map[string]string{},
		variables:     map[string]string{},
		resources:     map[string]string{},
		components:    map[string]string{},
	}

	for _, key := range sortedConfigKeys(p.Config) {
		names.configuration[key] = assign(key, "")
	}
	for _, key := range sortedOutputKeys(p.Outputs) {
		names.outputs[key] = assign(key, "")
	}
	for _, key := range sortedVariableKeys(p.Variables) {
		names.variables[key] = assign(key, "Var")
	}
	for _, key := range sortedResourceKeys(p.Resources) {
		names.resources[key] = assign(key, "Resource")
	}
	for _, key := range sortedComponentKeys(p.Components) {
		names.components[key] = assign(key, "Component")
	}
	return names
}

// resolve finds the IR name for a document name, checking every category.
func (n *assignedNames) resolve(name string) string {
	for _, m := range []map[string]string{
		n.configuration, n.variables, n.resources, n.outputs, n.components,
	} {
		if irName, ok := m[name]; ok {
			return irName
		}
	}
	return name
}

func sortedConfigKeys(decls []*ast.ConfigDecl) []string {
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.Name
	}
	sort.Strings(keys)
	return keys
}

func sortedOutputKeys(decls []*ast.OutputDecl) []string {
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.Name
	}
	sort.Strings(keys)
	return keys
}

func sortedVariableKeys(decls []*ast.VariableDecl) []string {
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.Name
	}
	sort.Strings(keys)
	return keys
}

func sortedResourceKeys(decls []*ast.ResourceDecl) []string {
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.LogicalName
	}
	sort.Strings(keys)
	return keys
}

func sortedComponentKeys(decls []*ast.ComponentDecl) []string {
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.Name
	}
	sort.Strings(keys)
	return keys
}
