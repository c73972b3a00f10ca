package codegen

import (
	"strings"
	"unicode"
)

// canonicalizeTypeToken expands a short type token to its canonical
// three-part form:
//
//	random:RandomPassword    -> random:index/randomPassword:RandomPassword
//	gcp:storage:Bucket       -> gcp:storage/bucket:Bucket
//
// Already-canonical tokens and the built-in "pulumi" package pass through.
func canonicalizeTypeToken(token string) string {
	parts := strings.Split(token, ":")

	if len(parts) == 3 && strings.Contains(parts[1], "/") {
		return token
	}
	if parts[0] == "pulumi" {
		return token
	}

	switch len(parts) {
	case 2:
		return parts[0] + ":index/" + lowerFirst(parts[1]) + ":" + parts[1]
	case 3:
		return parts[0] + ":" + parts[1] + "/" + lowerFirst(parts[2]) + ":" + parts[2]
	}
	return token
}

// collapseTypeToken shortens a canonical token to its display form, the
// partial inverse of canonicalizeTypeToken:
//
//	aws:s3/bucket:Bucket -> aws:s3:Bucket
//	foo:index:Bar        -> foo:Bar
func collapseTypeToken(token string) string {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return token
	}
	pkg, module, typeName := parts[0], parts[1], parts[2]

	if slash := strings.IndexByte(module, '/'); slash >= 0 {
		prefix, suffix := module[:slash], module[slash+1:]
		if upperFirst(suffix) == typeName {
			if prefix == "index" || prefix == "" {
				return pkg + ":" + typeName
			}
			return pkg + ":" + prefix + ":" + typeName
		}
		return token
	}

	if module == "index" || module == "" {
		return pkg + ":" + typeName
	}
	return token
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
