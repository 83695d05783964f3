package template

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/reporoller/reporoller/pkg/rrerrors"
)

// renderer holds the state shared across one render call: the fixed render
// timestamp (for the timestamp helper) and the section-nesting depth bound
// (§4.3 "Recursion depth in template expansions is bounded").
type renderer struct {
	now   time.Time
	depth int
}

// renderNodes walks nodes against ctx and returns the rendered text. An unknown
// {{name}} reference fails the whole render with ErrUnknownVariable, named
// per spec as UnknownVariable(name).
func renderNodes(nodes []node, ctx map[string]any, now time.Time) (string, error) {
	r := &renderer{now: now}
	var b strings.Builder
	if err := r.render(nodes, ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *renderer) render(nodes []node, ctx map[string]any, out *strings.Builder) error {
	for _, n := range nodes {
		switch v := n.(type) {
		case textNode:
			out.WriteString(v.text)

		case variableNode:
			val, ok := ctx[v.name]
			if !ok {
				return rrerrors.Wrap(rrerrors.KindTemplate, rrerrors.ErrUnknownVariable,
					fmt.Sprintf("unknown variable: %s", v.name))
			}
			out.WriteString(stringify(val))

		case helperNode:
			text, err := callHelper(v.name, v.args, ctx, r.now)
			if err != nil {
				return rrerrors.New(rrerrors.KindTemplate, err.Error())
			}
			out.WriteString(text)

		case sectionNode:
			if err := r.renderSection(v, ctx, out); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unhandled node type %T", n)
		}
	}
	return nil
}

func (r *renderer) renderSection(s sectionNode, ctx map[string]any, out *strings.Builder) error {
	val, bound := ctx[s.name]

	if s.inverted {
		if !bound || !truthy(val) {
			return r.renderBody(s, ctx, out)
		}
		return nil
	}

	if !bound || !truthy(val) {
		return nil
	}

	r.depth++
	defer func() { r.depth-- }()
	if r.depth > maxRecursionDepth {
		return rrerrors.New(rrerrors.KindTemplate,
			fmt.Sprintf("section %q exceeds maximum nesting depth of %d", s.name, maxRecursionDepth))
	}

	if items, isList := asItemContexts(val); isList {
		for _, item := range items {
			merged := mergeContext(ctx, item)
			if err := r.render(s.body, merged, out); err != nil {
				return err
			}
		}
		return nil
	}

	// A map value merges its fields into context for one render of the
	// body, giving nested field access (e.g. {{#author}}{{name}}{{/author}}).
	if m, ok := val.(map[string]any); ok {
		return r.render(s.body, mergeContext(ctx, m), out)
	}

	return r.renderBody(s, ctx, out)
}

func (r *renderer) renderBody(s sectionNode, ctx map[string]any, out *strings.Builder) error {
	return r.render(s.body, ctx, out)
}

// truthy follows mustache convention: false, nil, zero numbers, empty
// strings, and empty slices/maps are falsy; everything else is truthy.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !rv.IsZero()
	default:
		return true
	}
}

// asItemContexts reports whether v is a list to iterate, returning one
// context map per element (a map element is merged as-is; anything else is
// bound under the key "value", so the section body reads it as {{value}}).
func asItemContexts(v any) ([]map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]map[string]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if m, ok := elem.(map[string]any); ok {
			items[i] = m
		} else {
			items[i] = map[string]any{"value": elem}
		}
	}
	return items, true
}

func mergeContext(base, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
