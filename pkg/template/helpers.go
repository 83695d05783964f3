package template

import (
	"fmt"
	"strconv"
	"time"

	"github.com/reporoller/reporoller/pkg/stringutil"
)

// helperNames is the fixed helper catalogue: case conversions (snake,
// kebab, upper, lower, capitalise, pascal, camel), timestamp formatting,
// and default-value selection. No other callable is recognised — helpers
// cannot reach the file system, network, or process environment.
var helperNames = map[string]bool{
	"snake_case":  true,
	"kebab_case":  true,
	"upper_case":  true,
	"lower_case":  true,
	"capitalise":  true,
	"pascal_case": true,
	"camel_case":  true,
	"timestamp":   true,
	"default":     true,
}

func isHelperName(name string) bool { return helperNames[name] }

// callHelper resolves each arg against ctx (falling back to treating it as
// a literal if it is not a bound variable), then applies the named helper.
func callHelper(name string, args []string, ctx map[string]any, now time.Time) (string, error) {
	resolved := make([]string, len(args))
	for i, a := range args {
		resolved[i] = resolveArg(a, ctx)
	}

	switch name {
	case "snake_case":
		return applyUnary(name, resolved, stringutil.ToSnakeCase)
	case "kebab_case":
		return applyUnary(name, resolved, stringutil.ToKebabCase)
	case "upper_case":
		return applyUnary(name, resolved, stringutil.ToUpperCase)
	case "lower_case":
		return applyUnary(name, resolved, stringutil.ToLowerCase)
	case "capitalise":
		return applyUnary(name, resolved, stringutil.Capitalise)
	case "pascal_case":
		return applyUnary(name, resolved, stringutil.ToPascalCase)
	case "camel_case":
		return applyUnary(name, resolved, stringutil.ToCamelCase)
	case "timestamp":
		return helperTimestamp(resolved, now)
	case "default":
		return helperDefault(resolved)
	default:
		return "", fmt.Errorf("unknown helper %q", name)
	}
}

func applyUnary(name string, args []string, fn func(string) string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("helper %q takes exactly one argument, got %d", name, len(args))
	}
	return fn(args[0]), nil
}

// helperTimestamp formats the request's fixed render time with a Go
// reference-layout argument, e.g. {{timestamp "2006-01-02"}}. With no
// argument it uses RFC 3339. The time is supplied by the engine (never
// time.Now directly) so rendering stays deterministic (§4.3 "Determinism").
func helperTimestamp(args []string, now time.Time) (string, error) {
	layout := time.RFC3339
	if len(args) == 1 {
		layout = args[0]
	} else if len(args) > 1 {
		return "", fmt.Errorf("helper %q takes at most one argument, got %d", "timestamp", len(args))
	}
	return now.UTC().Format(layout), nil
}

// helperDefault returns its first argument unless empty, in which case it
// returns the second: {{default project_description "no description"}}.
func helperDefault(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("helper %q takes exactly two arguments, got %d", "default", len(args))
	}
	if args[0] != "" {
		return args[0], nil
	}
	return args[1], nil
}

// resolveArg resolves a helper argument: a double-quoted token is a string
// literal, anything else is looked up in ctx (missing lookups resolve to
// the empty string — arguments are not subject to the strict
// unknown-variable failure that plain {{name}} tags are, since a helper
// argument commonly supplies a literal fallback).
func resolveArg(arg string, ctx map[string]any) string {
	if unquoted, ok := unquote(arg); ok {
		return unquoted
	}
	if v, ok := ctx[arg]; ok {
		return stringify(v)
	}
	return ""
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v, true
		}
		return s[1 : len(s)-1], true
	}
	return "", false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
