package eval

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vk/yamlstack/internal/ast"
)

// evalBuiltin handles every builtin expression form. Unknown operands make
// the result unknown except where a builtin inherently requires a concrete
// value (file paths).
func (e *Evaluator) evalBuiltin(ctx context.Context, expr ast.Expr) (Value, error) {
	switch t := expr.(type) {
	case *ast.CallExpr:
		arg, err := e.evalExpr(ctx, t.Arg)
		if err != nil {
			return Value{}, err
		}
		return e.evalCall(t.Func, arg)

	case *ast.JoinExpr:
		return e.evalJoin(ctx, t)
	case *ast.SelectExpr:
		return e.evalSelect(ctx, t)
	case *ast.SplitExpr:
		return e.evalSplit(ctx, t)
	case *ast.SubstringExpr:
		return e.evalSubstring(ctx, t)
	case *ast.InvokeExpr:
		return e.evalInvoke(ctx, t)

	case *ast.AssetExpr:
		source, err := e.concreteString(ctx, t.Source, string(t.Kind))
		if err != nil {
			return Value{}, err
		}
		return Asset(&AssetValue{Constructor: string(t.Kind), Source: source}), nil

	case *ast.ArchiveExpr:
		source, err := e.concreteString(ctx, t.Source, string(t.Kind))
		if err != nil {
			return Value{}, err
		}
		return Archive(&ArchiveValue{Constructor: string(t.Kind), Source: source}), nil

	case *ast.AssetArchiveExpr:
		entries := make([]Field, 0, len(t.Entries))
		for _, entry := range t.Entries {
			v, err := e.evalExpr(ctx, entry.Value)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Field{Key: entry.Key, Value: v})
		}
		return Archive(&ArchiveValue{Constructor: "fn::assetArchive", Entries: entries}), nil
	}

	return Value{}, fmt.Errorf("internal: unhandled expression %T", expr)
}

func (e *Evaluator) evalCall(fn ast.BuiltinFunc, arg Value) (Value, error) {
	if fn == ast.FuncSecret {
		return arg.Secret(), nil
	}
	if arg.IsUnknown() {
		return Unknown().withSecretFrom(arg), nil
	}

	switch fn {
	case ast.FuncToJSON:
		var buf bytes.Buffer
		if err := writeJSON(&buf, arg); err != nil {
			return Value{}, err
		}
		return String(buf.String()).withSecretFrom(arg), nil

	case ast.FuncToBase64:
		s, err := requireString(fn, arg)
		if err != nil {
			return Value{}, err
		}
		return String(base64.StdEncoding.EncodeToString([]byte(s))).withSecretFrom(arg), nil

	case ast.FuncFromBase64:
		s, err := requireString(fn, arg)
		if err != nil {
			return Value{}, err
		}
		decoded, decErr := base64.StdEncoding.DecodeString(s)
		if decErr != nil {
			return Value{}, fmt.Errorf("%s: %w", fn, decErr)
		}
		if !utf8.Valid(decoded) {
			return Value{}, fmt.Errorf("%s: decoded bytes are not valid UTF-8", fn)
		}
		return String(string(decoded)).withSecretFrom(arg), nil

	case ast.FuncReadFile:
		path, err := requireString(fn, arg)
		if err != nil {
			return Value{}, err
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return Value{}, fmt.Errorf("%s: %w", fn, readErr)
		}
		return String(string(data)).withSecretFrom(arg), nil

	case ast.FuncAbs, ast.FuncFloor, ast.FuncCeil:
		n, err := requireNumber(fn, arg)
		if err != nil {
			return Value{}, err
		}
		switch fn {
		case ast.FuncAbs:
			n = math.Abs(n)
		case ast.FuncFloor:
			n = math.Floor(n)
		case ast.FuncCeil:
			n = math.Ceil(n)
		}
		return Number(n).withSecretFrom(arg), nil

	case ast.FuncMax, ast.FuncMin:
		if arg.Kind() != KindList || len(arg.AsList()) == 0 {
			return Value{}, fmt.Errorf("the argument to %s must be a non-empty list of numbers", fn)
		}
		var best float64
		for i, item := range arg.AsList() {
			if item.IsUnknown() {
				return Unknown().withSecretFrom(arg, item), nil
			}
			n, err := requireNumber(fn, item)
			if err != nil {
				return Value{}, err
			}
			if i == 0 || (fn == ast.FuncMax && n > best) || (fn == ast.FuncMin && n < best) {
				best = n
			}
		}
		return Number(best).withSecretFrom(arg), nil

	case ast.FuncStringLen:
		s, err := requireString(fn, arg)
		if err != nil {
			return Value{}, err
		}
		return Number(float64(utf8.RuneCountInString(s))).withSecretFrom(arg), nil
	}

	return Value{}, fmt.Errorf("internal: unhandled builtin %s", fn)
}

func (e *Evaluator) evalJoin(ctx context.Context, t *ast.JoinExpr) (Value, error) {
	delim, err := e.evalExpr(ctx, t.Delimiter)
	if err != nil {
		return Value{}, err
	}
	values, err := e.evalExpr(ctx, t.Values)
	if err != nil {
		return Value{}, err
	}
	if delim.IsUnknown() || values.IsUnknown() {
		return Unknown().withSecretFrom(delim, values), nil
	}
	d, err := requireString("fn::join", delim)
	if err != nil {
		return Value{}, err
	}
	if values.Kind() != KindList {
		return Value{}, fmt.Errorf("the second argument to fn::join must be a list, got %s", values.Kind())
	}

	secret := delim.IsSecret() || values.IsSecret()
	parts := make([]string, 0, len(values.AsList()))
	for _, item := range values.AsList() {
		secret = secret || item.IsSecret()
		if item.IsUnknown() {
			result := Unknown()
			if secret {
				result = result.Secret()
			}
			return result, nil
		}
		s, ok := item.StringifyScalar()
		if !ok {
			return Value{}, fmt.Errorf("fn::join cannot join a %s value", item.Kind())
		}
		parts = append(parts, s)
	}
	result := String(strings.Join(parts, d))
	if secret {
		result = result.Secret()
	}
	return result, nil
}

func (e *Evaluator) evalSelect(ctx context.Context, t *ast.SelectExpr) (Value, error) {
	index, err := e.evalExpr(ctx, t.Index)
	if err != nil {
		return Value{}, err
	}
	values, err := e.evalExpr(ctx, t.Values)
	if err != nil {
		return Value{}, err
	}
	if index.IsUnknown() || values.IsUnknown() {
		return Unknown().withSecretFrom(index, values), nil
	}
	n, err := requireNumber("fn::select", index)
	if err != nil {
		return Value{}, err
	}
	if n != math.Trunc(n) {
		return Value{}, fmt.Errorf("fn::select index must be an integer, got %s", FormatNumber(n))
	}
	if values.Kind() != KindList {
		return Value{}, fmt.Errorf("the second argument to fn::select must be a list, got %s", values.Kind())
	}
	items := values.AsList()
	i := int(n)
	if i < 0 || i >= len(items) {
		return Value{}, fmt.Errorf("fn::select index %d out of bounds (length %d)", i, len(items))
	}
	return items[i].withSecretFrom(index, values), nil
}

func (e *Evaluator) evalSplit(ctx context.Context, t *ast.SplitExpr) (Value, error) {
	delim, err := e.evalExpr(ctx, t.Delimiter)
	if err != nil {
		return Value{}, err
	}
	source, err := e.evalExpr(ctx, t.Source)
	if err != nil {
		return Value{}, err
	}
	if delim.IsUnknown() || source.IsUnknown() {
		return Unknown().withSecretFrom(delim, source), nil
	}
	d, err := requireString("fn::split", delim)
	if err != nil {
		return Value{}, err
	}
	s, err := requireString("fn::split", source)
	if err != nil {
		return Value{}, err
	}
	parts := strings.Split(s, d)
	items := make([]Value, len(parts))
	for i, part := range parts {
		items[i] = String(part)
	}
	return List(items).withSecretFrom(delim, source), nil
}

func (e *Evaluator) evalSubstring(ctx context.Context, t *ast.SubstringExpr) (Value, error) {
	source, err := e.evalExpr(ctx, t.Source)
	if err != nil {
		return Value{}, err
	}
	start, err := e.evalExpr(ctx, t.Start)
	if err != nil {
		return Value{}, err
	}
	length, err := e.evalExpr(ctx, t.Length)
	if err != nil {
		return Value{}, err
	}
	if source.IsUnknown() || start.IsUnknown() || length.IsUnknown() {
		return Unknown().withSecretFrom(source, start, length), nil
	}

	s, err := requireString("fn::substring", source)
	if err != nil {
		return Value{}, err
	}
	from, err := requireInt("fn::substring", start)
	if err != nil {
		return Value{}, err
	}
	count, err := requireInt("fn::substring", length)
	if err != nil {
		return Value{}, err
	}

	runes := []rune(s)
	if from < 0 || from > len(runes) {
		return Value{}, fmt.Errorf("fn::substring start %d out of bounds (length %d)", from, len(runes))
	}
	if count < 0 {
		return Value{}, fmt.Errorf("fn::substring length must not be negative, got %d", count)
	}
	end := from + count
	if end > len(runes) {
		end = len(runes)
	}
	return String(string(runes[from:end])).withSecretFrom(source, start, length), nil
}

func (e *Evaluator) evalInvoke(ctx context.Context, t *ast.InvokeExpr) (Value, error) {
	var args []Field
	if t.CallArgs != nil {
		v, err := e.evalExpr(ctx, t.CallArgs)
		if err != nil {
			return Value{}, err
		}
		switch v.Kind() {
		case KindObject:
			args = v.AsObject()
		case KindNull:
		case KindUnknown:
			return Unknown(), nil
		default:
			return Value{}, fmt.Errorf("the arguments to fn::invoke must be an object, got %s", v.Kind())
		}
	}

	opts := InvokeCallOpts{
		Version:           t.CallOpts.Version,
		PluginDownloadURL: t.CallOpts.PluginDownloadURL,
	}
	for _, ref := range []struct {
		name string
		expr ast.Expr
		dst  *string
	}{
		{"provider", t.CallOpts.Provider, &opts.Provider},
		{"parent", t.CallOpts.Parent, &opts.Parent},
	} {
		if ref.expr == nil {
			continue
		}
		v, err := e.evalExpr(ctx, ref.expr)
		if err != nil {
			return Value{}, err
		}
		if v.Kind() != KindResource {
			return Value{}, fmt.Errorf("invoke option '%s' must reference a resource, got %s", ref.name, v.Kind())
		}
		*ref.dst = v.AsResource().Name
	}

	result, err := e.provider.Invoke(ctx, t.Token, args, opts)
	if err != nil {
		return Value{}, fmt.Errorf("invoking '%s': %w", t.Token, err)
	}

	if t.Return != "" {
		if result.IsUnknown() {
			return result, nil
		}
		if result.Kind() != KindObject {
			return Value{}, fmt.Errorf("'%s' returned a %s value; 'return' requires an object result", t.Token, result.Kind())
		}
		v, ok := result.ObjectField(t.Return)
		if !ok {
			return Value{}, fmt.Errorf("'%s' result has no property '%s'", t.Token, t.Return)
		}
		return v.withSecretFrom(result), nil
	}
	return result, nil
}

// concreteString evaluates an expression that must produce a known string,
// such as an asset path.
func (e *Evaluator) concreteString(ctx context.Context, expr ast.Expr, what string) (string, error) {
	v, err := e.evalExpr(ctx, expr)
	if err != nil {
		return "", err
	}
	if v.IsUnknown() {
		return "", &UnknownValueError{Context: fmt.Sprintf("the argument to %s", what)}
	}
	if v.Kind() != KindString {
		return "", fmt.Errorf("the argument to %s must be a string, got %s", what, v.Kind())
	}
	return v.AsString(), nil
}

func requireString(fn any, v Value) (string, error) {
	if v.Kind() != KindString {
		return "", fmt.Errorf("%s expects a string, got %s", fn, v.Kind())
	}
	return v.AsString(), nil
}

func requireNumber(fn any, v Value) (float64, error) {
	if v.Kind() != KindNumber {
		return 0, fmt.Errorf("%s expects a number, got %s", fn, v.Kind())
	}
	return v.AsNumber(), nil
}

func requireInt(fn any, v Value) (int, error) {
	n, err := requireNumber(fn, v)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%s expects an integer, got %s", fn, FormatNumber(n))
	}
	return int(n), nil
}

// writeJSON serializes a value as JSON, preserving object field order.
func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.AsBool()))
	case KindNumber:
		buf.WriteString(FormatNumber(v.AsNumber()))
	case KindString:
		encoded, err := jsonString(v.AsString())
		if err != nil {
			return err
		}
		buf.WriteString(encoded)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.AsList() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.AsObject() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := jsonString(f.Key)
			if err != nil {
				return err
			}
			buf.WriteString(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("fn::toJSON cannot serialize a %s value", v.Kind())
	}
	return nil
}

func jsonString(s string) (string, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("fn::toJSON: %w", err)
	}
	return string(encoded), nil
}
